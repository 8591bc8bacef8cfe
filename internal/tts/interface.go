// internal/tts/interface.go
package tts

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Corphon/StorySpark/internal/models"
)

// ErrUnknownProvider 未注册的语音合成提供者
var ErrUnknownProvider = errors.New("未知的语音合成提供者")

// ErrUnknownVoice 提供者不认识的语音ID
var ErrUnknownVoice = errors.New("未知的语音ID")

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format,omitempty"` // 默认 mp3
}

// SpeechResult 语音合成结果，音频由提供者托管，只返回地址
type SpeechResult struct {
	AudioURL        string  `json:"audioUrl"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	ProviderName    string  `json:"providerName,omitempty"`
}

// Provider 定义所有语音合成提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 列出可用语音
	ListVoices(ctx context.Context) ([]models.Voice, error)

	// 合成一段语音
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// ProviderFactory 提供者工厂
type ProviderFactory func() Provider

var (
	providers   = make(map[string]ProviderFactory)
	providersMu sync.RWMutex
)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider 创建并初始化指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	providersMu.RLock()
	factory, exists := providers[name]
	providersMu.RUnlock()
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
