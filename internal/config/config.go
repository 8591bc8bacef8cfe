// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// Config 存储从环境变量读取的基础配置
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DataDir      string `env:"DATA_DIR" envDefault:"data"`
	StaticDir    string `env:"STATIC_DIR" envDefault:"static"`
	LogDir       string `env:"LOG_DIR" envDefault:"logs"`
	MusicDir     string `env:"MUSIC_DIR" envDefault:"assets/music"`
	DebugMode    bool   `env:"DEBUG_MODE" envDefault:"true"`
	AuthSecret   string `env:"AUTH_SECRET_KEY"`
	MurfAPIKey   string `env:"MURF_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	// 脚本长度上限，超过则拒绝分析和生成
	MaxScriptLength int `env:"MAX_SCRIPT_LENGTH" envDefault:"100000"`

	// 创作向导的模拟计时参数
	AnalysisDelay    time.Duration `env:"WIZARD_ANALYSIS_DELAY" envDefault:"2500ms"`
	ProgressStep     int           `env:"WIZARD_PROGRESS_STEP" envDefault:"8"`
	ProgressInterval time.Duration `env:"WIZARD_PROGRESS_INTERVAL" envDefault:"200ms"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"30m"`
}

// AppConfig 包含可在运行时修改并持久化的配置
type AppConfig struct {
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 语音合成相关配置
	TTSProvider string            `json:"tts_provider"`
	TTSConfig   map[string]string `json:"tts_config"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if cfg.MaxScriptLength <= 0 {
		return nil, fmt.Errorf("MAX_SCRIPT_LENGTH 必须为正数: %d", cfg.MaxScriptLength)
	}
	if cfg.ProgressStep <= 0 || cfg.ProgressStep > 100 {
		return nil, fmt.Errorf("WIZARD_PROGRESS_STEP 必须在 1-100 之间: %d", cfg.ProgressStep)
	}

	return cfg, nil
}

// defaultAppConfig 根据基础配置推导默认的提供者设置
func defaultAppConfig(base *Config) *AppConfig {
	app := &AppConfig{
		Port:        base.Port,
		DataDir:     base.DataDir,
		LogDir:      base.LogDir,
		DebugMode:   base.DebugMode,
		LLMProvider: "google",
		LLMConfig: map[string]string{
			"api_key":       base.GeminiAPIKey,
			"default_model": "gemini-pro",
		},
		TTSProvider: "catalog",
		TTSConfig:   map[string]string{},
	}

	if base.GeminiAPIKey == "" && base.OpenAIAPIKey != "" {
		app.LLMProvider = "openai"
		app.LLMConfig = map[string]string{
			"api_key":       base.OpenAIAPIKey,
			"default_model": "gpt-4o-mini",
		}
	}

	if base.MurfAPIKey != "" {
		app.TTSProvider = "murf"
		app.TTSConfig = map[string]string{"api_key": base.MurfAPIKey}
	}

	return app
}

// InitConfig 初始化配置管理器，合并已保存的 config.json
func InitConfig(base *Config) error {
	if base == nil {
		return fmt.Errorf("基础配置为空")
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(base.DataDir, "config.json")
	currentConfig = defaultAppConfig(base)

	// 尝试从文件加载已保存的配置
	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil {
			// 保留文件中的提供者设置，基础字段始终以环境变量为准
			saved.Port = base.Port
			saved.DataDir = base.DataDir
			saved.LogDir = base.LogDir
			saved.DebugMode = base.DebugMode

			if saved.LLMProvider == "" {
				saved.LLMProvider = currentConfig.LLMProvider
				saved.LLMConfig = currentConfig.LLMConfig
			}
			if saved.LLMConfig == nil {
				saved.LLMConfig = map[string]string{}
			}
			if saved.LLMConfig["api_key"] == "" {
				saved.LLMConfig["api_key"] = currentConfig.LLMConfig["api_key"]
			}

			if saved.TTSProvider == "" {
				saved.TTSProvider = currentConfig.TTSProvider
				saved.TTSConfig = currentConfig.TTSConfig
			}
			if saved.TTSConfig == nil {
				saved.TTSConfig = map[string]string{}
			}
			if saved.TTSConfig["api_key"] == "" && base.MurfAPIKey != "" {
				saved.TTSConfig["api_key"] = base.MurfAPIKey
			}

			currentConfig = &saved
		}
	}

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return &AppConfig{
			Port:        "8080",
			LLMProvider: "google",
			LLMConfig:   map[string]string{},
			TTSProvider: "catalog",
			TTSConfig:   map[string]string{},
		}
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = copyMap(currentConfig.LLMConfig)
	configCopy.TTSConfig = copyMap(currentConfig.TTSConfig)
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, cfg map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = copyMap(cfg)

	return saveLocked()
}

// UpdateTTSConfig 更新语音合成配置
func UpdateTTSConfig(provider string, cfg map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.TTSProvider = provider
	currentConfig.TTSConfig = copyMap(cfg)

	return saveLocked()
}

// saveLocked 保存当前配置到文件，调用方需持有写锁
func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	// 密钥只从环境变量读取，不落盘
	persisted := *currentConfig
	persisted.LLMConfig = withoutSecrets(currentConfig.LLMConfig)
	persisted.TTSConfig = withoutSecrets(currentConfig.TTSConfig)

	data, err := json.MarshalIndent(&persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}

func withoutSecrets(src map[string]string) map[string]string {
	dst := copyMap(src)
	delete(dst, "api_key")
	return dst
}

func copyMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
