// internal/api/auth_middleware.go
package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/utils"
)

const (
	userKey              = "user"
	userAuthenticatedKey = "user_authenticated"
)

// AuthMiddleware 解析 Bearer 令牌；缺失或无效时按访客用户继续处理
func AuthMiddleware(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			setGuest(c)
			c.Next()
			return
		}

		user, err := users.Authenticate(token)
		if err != nil {
			utils.GetLogger().Debug("无效的令牌，降级为访客", map[string]interface{}{"error": err})
			setGuest(c)
			c.Set("auth_error", err.Error())
			c.Next()
			return
		}

		c.Set(userKey, *user)
		c.Set(userAuthenticatedKey, true)
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

func setGuest(c *gin.Context) {
	c.Set(userKey, services.GuestUser)
	c.Set(userAuthenticatedKey, false)
}

// GetUserFromContext 获取当前用户及是否通过令牌认证
func GetUserFromContext(c *gin.Context) (models.User, bool) {
	value, exists := c.Get(userKey)
	if !exists {
		return services.GuestUser, false
	}
	user, ok := value.(models.User)
	if !ok {
		return services.GuestUser, false
	}
	return user, c.GetBool(userAuthenticatedKey)
}
