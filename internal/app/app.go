// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/StorySpark/internal/api"
	"github.com/Corphon/StorySpark/internal/config"
	"github.com/Corphon/StorySpark/internal/di"
	"github.com/Corphon/StorySpark/internal/llm"
	_ "github.com/Corphon/StorySpark/internal/llm/providers/google"
	_ "github.com/Corphon/StorySpark/internal/llm/providers/openai"
	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/storage"
	"github.com/Corphon/StorySpark/internal/tts"
	_ "github.com/Corphon/StorySpark/internal/tts/providers/catalog"
	_ "github.com/Corphon/StorySpark/internal/tts/providers/murf"
	"github.com/Corphon/StorySpark/internal/utils"
)

// Server 可启动和优雅关闭的HTTP服务器
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 持有服务实例和HTTP服务器
type App struct {
	config    *config.Config
	container *di.Container
	router    http.Handler
	server    Server
	stopChan  chan os.Signal

	handler *api.Handler
	storage *storage.FileStorage
	wizard  *services.WizardService
	audio   *services.AudioService
	locks   *services.LockManager
}

// New 按依赖顺序创建所有服务并配置路由
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}

	a := &App{
		config:    cfg,
		container: di.NewContainer(),
		stopChan:  make(chan os.Signal, 1),
	}

	if err := a.InitServices(); err != nil {
		a.cleanup()
		return nil, err
	}

	router, handler, err := api.SetupRouter(a.container, api.RouterOptions{
		StaticDir:    cfg.StaticDir,
		SecureCookie: !cfg.DebugMode,
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.handler = handler
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// InitServices 创建服务并注册到容器
func (a *App) InitServices() error {
	cfg := a.config
	appCfg := config.GetCurrentConfig()

	fs, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("创建文件存储失败: %w", err)
	}
	a.storage = fs
	a.container.Register(di.ServiceStorage, fs)

	ttsProvider, err := tts.GetProvider(appCfg.TTSProvider, appCfg.TTSConfig)
	if err != nil {
		utils.GetLogger().Warn("⚠️ 语音提供者初始化失败，改用内置目录", map[string]interface{}{
			"provider": appCfg.TTSProvider,
			"error":    err,
		})
		if ttsProvider, err = tts.GetProvider("catalog", nil); err != nil {
			return fmt.Errorf("初始化语音提供者失败: %w", err)
		}
	}

	// 没有可用的 LLM 时故事续写返回未配置错误，其余功能不受影响
	llmProvider, err := llm.GetProvider(appCfg.LLMProvider, appCfg.LLMConfig)
	if err != nil {
		utils.GetLogger().Warn("⚠️ LLM提供者未就绪", map[string]interface{}{
			"provider": appCfg.LLMProvider,
			"error":    err,
		})
		llmProvider = nil
	}

	secret := []byte(cfg.AuthSecret)
	if len(secret) == 0 {
		if secret, err = utils.GenerateSecureKey(32); err != nil {
			return err
		}
		utils.GetLogger().Warn("⚠️ 未设置 AUTH_SECRET_KEY，使用临时密钥，重启后令牌失效", nil)
	}

	progress := services.NewProgressService()
	a.locks = services.NewLockManager(10 * time.Minute)
	a.wizard = services.NewWizardService(services.WorkspaceOptions{
		AnalysisDelay:    cfg.AnalysisDelay,
		ProgressStep:     cfg.ProgressStep,
		ProgressInterval: cfg.ProgressInterval,
	}, cfg.SessionTTL)
	a.audio = services.NewAudioService(fs, ttsProvider, progress, a.locks, services.AudioServiceOptions{
		MaxScriptLength: cfg.MaxScriptLength,
		MusicDir:        cfg.MusicDir,
	})

	a.container.Register(di.ServiceProgress, progress)
	a.container.Register(di.ServiceWizard, a.wizard)
	a.container.Register(di.ServiceAnalyzer, services.NewAnalyzerService(fs, cfg.MaxScriptLength))
	a.container.Register(di.ServiceVoice, services.NewVoiceService(ttsProvider))
	a.container.Register(di.ServiceAudio, a.audio)
	a.container.Register(di.ServiceStory, services.NewStoryService(llmProvider, appCfg.LLMConfig["default_model"]))
	a.container.Register(di.ServiceUser, services.NewUserService(secret, 24*time.Hour))

	utils.GetLogger().Info("✅ 所有服务初始化完成", map[string]interface{}{
		"services":     a.container.GetNames(),
		"tts_provider": ttsProvider.GetName(),
		"llm_ready":    llmProvider != nil,
	})
	return nil
}

// Container 依赖注入容器
func (a *App) Container() *di.Container {
	return a.container
}

// Router HTTP处理器
func (a *App) Router() http.Handler {
	return a.router
}

// Run 启动服务器并阻塞到收到停止信号
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	var runErr error
	select {
	case <-a.stopChan:
		utils.GetLogger().Info("🛑 正在关闭服务器...", nil)
	case err := <-errChan:
		runErr = fmt.Errorf("启动服务器失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("服务器强制关闭: %w", err)
	}

	a.cleanup()
	if runErr == nil {
		utils.GetLogger().Info("✅ 服务器优雅关闭完成", nil)
	}
	return runErr
}

// cleanup 按创建的相反顺序释放资源
func (a *App) cleanup() {
	if a.handler != nil {
		a.handler.Close()
	}
	if a.wizard != nil {
		a.wizard.Close()
	}
	if a.audio != nil {
		a.audio.Close()
	}
	if a.locks != nil {
		a.locks.Stop()
	}
	if a.storage != nil {
		a.storage.Close()
	}
}

// CreateDirectories 创建数据和日志目录
func CreateDirectories(cfg *config.Config) error {
	for _, dir := range []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, storage.CollectionAnalysisJobs),
		filepath.Join(cfg.DataDir, storage.CollectionAudioJobs),
		cfg.LogDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}
