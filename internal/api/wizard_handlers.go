// internal/api/wizard_handlers.go
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/services"
)

// 导入文件大小上限
const maxImportSize = 1 << 20

func (h *Handler) workspace(c *gin.Context) *services.Workspace {
	return h.Wizard.Workspace(SessionID(c))
}

// respondState 统一输出工作区状态或错误
func (h *Handler) respondState(c *gin.Context, state models.WorkspaceState, err error) {
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, state)
}

// GetWorkspace 当前会话的工作区快照
func (h *Handler) GetWorkspace(c *gin.Context) {
	h.Response.Success(c, h.workspace(c).Snapshot())
}

// SetWorkspaceStory 替换剧本文本
func (h *Handler) SetWorkspaceStory(c *gin.Context) {
	var req struct {
		Story string `json:"story"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	state, err := h.workspace(c).SetStory(req.Story)
	h.respondState(c, state, err)
}

// LoadWorkspaceSample 载入示例剧本
func (h *Handler) LoadWorkspaceSample(c *gin.Context) {
	state, err := h.workspace(c).LoadSample()
	h.respondState(c, state, err)
}

// ImportWorkspaceFile 上传纯文本文件作为剧本
func (h *Handler) ImportWorkspaceFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Response.BadRequest(c, "未找到上传的文件", err.Error())
		return
	}
	if fileHeader.Size > maxImportSize {
		h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileInvalid, "文件过大")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}

	state, err := h.workspace(c).ImportFile(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	h.respondState(c, state, err)
}

// AnalyzeWorkspace 开始模拟分析
func (h *Handler) AnalyzeWorkspace(c *gin.Context) {
	state, err := h.workspace(c).Analyze()
	h.respondState(c, state, err)
}

// AssignWorkspaceVoice 为角色分配语音
func (h *Handler) AssignWorkspaceVoice(c *gin.Context) {
	var req struct {
		Voice string `json:"voice"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	state, err := h.workspace(c).AssignVoice(c.Param("name"), req.Voice)
	h.respondState(c, state, err)
}

// GenerateWorkspace 开始模拟生成
func (h *Handler) GenerateWorkspace(c *gin.Context) {
	state, err := h.workspace(c).Generate()
	h.respondState(c, state, err)
}

// ToggleWorkspacePlayback 切换播放
func (h *Handler) ToggleWorkspacePlayback(c *gin.Context) {
	state, err := h.workspace(c).TogglePlayback()
	h.respondState(c, state, err)
}

// SetWorkspaceMusic 设置背景音乐
func (h *Handler) SetWorkspaceMusic(c *gin.Context) {
	var req struct {
		Mood string `json:"mood"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	state, err := h.workspace(c).SetBackgroundMusic(req.Mood)
	h.respondState(c, state, err)
}

// SetWorkspaceTab 切换标签页
func (h *Handler) SetWorkspaceTab(c *gin.Context) {
	var req struct {
		Tab string `json:"tab" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	state, err := h.workspace(c).SetActiveTab(req.Tab)
	h.respondState(c, state, err)
}

// ResetWorkspace 恢复初始状态
func (h *Handler) ResetWorkspace(c *gin.Context) {
	state, err := h.workspace(c).Reset()
	h.respondState(c, state, err)
}
