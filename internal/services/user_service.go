// internal/services/user_service.go
package services

import (
	"crypto/subtle"
	"time"

	"github.com/Corphon/StorySpark/internal/auth"
	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/utils"
)

type userRecord struct {
	ID       string
	Password string
}

// GuestUser 未携带有效令牌时的默认用户
var GuestUser = models.User{ID: "1", Username: "admin"}

// UserService 模拟用户表和令牌签发
type UserService struct {
	users    map[string]userRecord
	tokenCfg *auth.TokenConfig
}

// NewUserService 创建用户服务
func NewUserService(secret []byte, expiration time.Duration) *UserService {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &UserService{
		users: map[string]userRecord{
			"admin": {ID: "1", Password: "secret"},
		},
		tokenCfg: &auth.TokenConfig{Secret: secret, Expiration: expiration},
	}
}

// LoginResult 登录结果
type LoginResult struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
}

// Login 校验用户名密码并签发令牌
func (s *UserService) Login(username, password string) (*LoginResult, error) {
	record, ok := s.users[username]
	if !ok || subtle.ConstantTimeCompare([]byte(record.Password), []byte(password)) != 1 {
		utils.GetMetricsCollector().IncrementCounter("auth.login_failed")
		return nil, apperrors.NewUnauthorizedError("Invalid credentials", nil)
	}

	token, err := auth.GenerateToken(record.ID, username, s.tokenCfg)
	if err != nil {
		return nil, apperrors.NewProcessingError("签发令牌失败", err)
	}

	utils.GetMetricsCollector().IncrementCounter("auth.login")
	utils.GetLogger().Info("用户登录", map[string]interface{}{"user_id": record.ID})
	return &LoginResult{
		User:      models.User{ID: record.ID, Username: username},
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenCfg.Expiration).Unix(),
	}, nil
}

// Authenticate 解析令牌得到用户
func (s *UserService) Authenticate(token string) (*models.User, error) {
	parsed, err := auth.ParseToken(token, s.tokenCfg)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("无效的令牌", err)
	}
	return &models.User{ID: parsed.UserID, Username: parsed.Username}, nil
}

// CurrentUser 令牌无效时退化为访客用户
func (s *UserService) CurrentUser(token string) models.User {
	if token != "" {
		if user, err := s.Authenticate(token); err == nil {
			return *user
		}
	}
	return GuestUser
}
