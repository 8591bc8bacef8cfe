// internal/api/handlers.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/config"
	"github.com/Corphon/StorySpark/internal/llm"
	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Wizard   *services.WizardService   // 创作向导
	Analyzer *services.AnalyzerService // 剧本分析
	Voices   *services.VoiceService    // 语音目录
	Audio    *services.AudioService    // 音频生成
	Story    *services.StoryService    // 故事续写
	Users    *services.UserService     // 用户
	Progress *services.ProgressService // 进度跟踪

	WebSocketHandler *WebSocketHandler
	WebSocketManager *WebSocketManager
	RateLimiter      *RateLimiter
	Response         *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	wizard *services.WizardService,
	analyzer *services.AnalyzerService,
	voices *services.VoiceService,
	audio *services.AudioService,
	story *services.StoryService,
	users *services.UserService,
	progress *services.ProgressService) *Handler {

	manager := NewWebSocketManager(60 * time.Second)
	return &Handler{
		Wizard:           wizard,
		Analyzer:         analyzer,
		Voices:           voices,
		Audio:            audio,
		Story:            story,
		Users:            users,
		Progress:         progress,
		WebSocketHandler: NewWebSocketHandler(manager, wizard),
		WebSocketManager: manager,
		RateLimiter:      NewRateLimiter(),
		Response:         NewResponseHelper(),
	}
}

// Close 停止处理器持有的后台协程
func (h *Handler) Close() {
	h.WebSocketManager.Stop()
	h.RateLimiter.Stop()
}

// WorkspaceWebSocket 工作区 WebSocket 连接
func (h *Handler) WorkspaceWebSocket(c *gin.Context) {
	h.WebSocketHandler.WorkspaceWebSocket(c)
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.WebSocketManager.GetStatus()
	status["timestamp"] = time.Now().Format(time.RFC3339)
	h.Response.Success(c, status)
}

// GetMetrics 导出运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	metrics := utils.GetMetricsCollector().GetMetrics()
	metrics["workspaces_active"] = h.Wizard.Count()
	metrics["progress_trackers"] = h.Progress.Count()
	h.Response.Success(c, metrics)
}

// GetSettings 当前提供者配置，不返回密钥
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	h.Response.Success(c, map[string]interface{}{
		"debug_mode":   cfg.DebugMode,
		"llm_provider": cfg.LLMProvider,
		"llm_model":    cfg.LLMConfig["default_model"],
		"llm_ready":    h.Story.Ready(),
		"llm_models":   llm.GetSupportedModelsForProvider(cfg.LLMProvider),
		"llm_options":  llm.ListProviders(),
		"tts_provider": h.Voices.ProviderName(),
	}, "设置获取成功")
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	h.Response.Success(c, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
