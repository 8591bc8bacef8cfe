// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/config"
	"github.com/Corphon/StorySpark/internal/di"
	"github.com/Corphon/StorySpark/internal/services"
)

// RouterOptions 路由配置
type RouterOptions struct {
	StaticDir    string
	SecureCookie bool
}

// SetupRouter 从容器中取出服务并配置HTTP路由
func SetupRouter(container *di.Container, opts RouterOptions) (*gin.Engine, *Handler, error) {
	wizard, err := di.Resolve[*services.WizardService](container, di.ServiceWizard)
	if err != nil {
		return nil, nil, fmt.Errorf("向导服务未正确初始化: %w", err)
	}
	analyzer, err := di.Resolve[*services.AnalyzerService](container, di.ServiceAnalyzer)
	if err != nil {
		return nil, nil, fmt.Errorf("分析服务未正确初始化: %w", err)
	}
	voices, err := di.Resolve[*services.VoiceService](container, di.ServiceVoice)
	if err != nil {
		return nil, nil, fmt.Errorf("语音服务未正确初始化: %w", err)
	}
	audio, err := di.Resolve[*services.AudioService](container, di.ServiceAudio)
	if err != nil {
		return nil, nil, fmt.Errorf("音频服务未正确初始化: %w", err)
	}
	story, err := di.Resolve[*services.StoryService](container, di.ServiceStory)
	if err != nil {
		return nil, nil, fmt.Errorf("故事服务未正确初始化: %w", err)
	}
	users, err := di.Resolve[*services.UserService](container, di.ServiceUser)
	if err != nil {
		return nil, nil, fmt.Errorf("用户服务未正确初始化: %w", err)
	}
	progress, err := di.Resolve[*services.ProgressService](container, di.ServiceProgress)
	if err != nil {
		return nil, nil, fmt.Errorf("进度服务未正确初始化: %w", err)
	}

	handler := NewHandler(wizard, analyzer, voices, audio, story, users, progress)

	tmpl, err := loadTemplates()
	if err != nil {
		handler.Close()
		return nil, nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	if !config.GetCurrentConfig().DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(SessionMiddleware(opts.SecureCookie))
	r.Use(AuthMiddleware(users))

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			r.Static("/static", opts.StaticDir)
		}
	}
	r.SetHTMLTemplate(tmpl)

	// ===============================
	// 页面路由
	// ===============================
	r.GET("/", handler.IndexPage)
	r.GET("/about", handler.AboutPage)
	r.GET("/app", handler.AppPage)
	r.POST("/theme", handler.SwitchTheme)
	r.GET("/health", handler.HealthCheck)

	// WebSocket 支持
	r.GET("/ws/workspace", handler.WorkspaceWebSocket)

	limiter := handler.RateLimiter

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		workspace := api.Group("/workspace")
		workspace.Use(limiter.BySession(120, time.Minute))
		{
			workspace.GET("", handler.GetWorkspace)
			workspace.POST("/story", handler.SetWorkspaceStory)
			workspace.POST("/sample", handler.LoadWorkspaceSample)
			workspace.POST("/import", handler.ImportWorkspaceFile)
			workspace.POST("/analyze", handler.AnalyzeWorkspace)
			workspace.PUT("/characters/:name/voice", handler.AssignWorkspaceVoice)
			workspace.POST("/generate", handler.GenerateWorkspace)
			workspace.POST("/playback", handler.ToggleWorkspacePlayback)
			workspace.PUT("/music", handler.SetWorkspaceMusic)
			workspace.PUT("/tab", handler.SetWorkspaceTab)
			workspace.POST("/reset", handler.ResetWorkspace)
		}

		analyze := api.Group("/analyze")
		{
			analyze.POST("/script", limiter.ByIP(30, time.Minute), handler.AnalyzeScript)
			analyze.GET("/status/:job_id", handler.GetAnalysisStatus)
		}

		voicesGroup := api.Group("/voices")
		{
			voicesGroup.GET("", handler.ListVoices)
			voicesGroup.POST("/:voice_id/preview", limiter.ByIP(20, time.Minute), handler.PreviewVoice)
		}

		audioGroup := api.Group("/audio")
		{
			audioGroup.POST("/generate", limiter.ByIP(10, time.Minute), handler.GenerateAudio)
			audioGroup.GET("/status/:job_id", handler.GetAudioStatus)
			audioGroup.GET("/:job_id/download", handler.DownloadAudio)
		}

		api.GET("/progress/:task_id", handler.SubscribeProgress)

		api.GET("/music", handler.ListMusic)
		api.POST("/music/apply", handler.ApplyMusic)

		files := api.Group("/files")
		{
			files.POST("/upload", handler.UploadFile)
			files.POST("/validate", handler.ValidateFile)
		}

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", limiter.ByIP(10, time.Minute), handler.Login)
			authGroup.GET("/me", handler.GetCurrentUser)
		}

		api.POST("/story/next", limiter.ByIP(20, time.Minute), handler.NextScene)
		api.POST("/command/detect", handler.DetectCommand)

		api.GET("/settings", handler.GetSettings)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		handler.Response.Error(c, http.StatusNotFound, ErrorNotFound, "路由不存在: "+c.Request.URL.Path)
	})

	return r, handler, nil
}
