// internal/api/account_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// Login 用户名密码登录，返回令牌
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	result, err := h.Users.Login(req.Username, req.Password)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, result, "登录成功")
}

// GetCurrentUser 当前用户，未登录时为访客
func (h *Handler) GetCurrentUser(c *gin.Context) {
	user, authenticated := GetUserFromContext(c)
	h.Response.Success(c, map[string]interface{}{
		"user":          user,
		"authenticated": authenticated,
	})
}

// NextScene 根据用户指令续写下一场景
func (h *Handler) NextScene(c *gin.Context) {
	var req struct {
		CurrentScene string `json:"current_scene"`
		UserCommand  string `json:"user_command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	next, err := h.Story.NextScene(c.Request.Context(), req.CurrentScene, req.UserCommand)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, map[string]interface{}{"next_scene": next})
}

// DetectCommand 识别语音指令
func (h *Handler) DetectCommand(c *gin.Context) {
	var req struct {
		AudioData string `json:"audio_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	h.Response.Success(c, map[string]interface{}{
		"detected_command": h.Story.DetectCommand(req.AudioData),
	})
}
