// internal/models/user.go
package models

// User 登录用户
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
