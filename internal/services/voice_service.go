// internal/services/voice_service.go
package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/tts"
	"github.com/Corphon/StorySpark/internal/utils"
)

// PreviewText 语音试听使用的固定文本
const PreviewText = "Hi, I am a voice sample from Murf!"

// VoiceService 提供语音目录和试听
type VoiceService struct {
	provider tts.Provider
}

// NewVoiceService 创建语音服务
func NewVoiceService(provider tts.Provider) *VoiceService {
	return &VoiceService{provider: provider}
}

// ProviderName 当前语音合成提供者
func (s *VoiceService) ProviderName() string {
	return s.provider.GetName()
}

// ListVoices 列出可用语音
func (s *VoiceService) ListVoices(ctx context.Context) ([]models.Voice, error) {
	started := time.Now()
	voices, err := s.provider.ListVoices(ctx)
	utils.GetMetricsCollector().RecordDuration("tts.list_voices_ms", started)
	if err != nil {
		utils.GetLogger().Error("获取语音列表失败", map[string]interface{}{
			"provider": s.provider.GetName(),
			"error":    err,
		})
		return nil, apperrors.NewUpstreamError("Failed to fetch voices", err)
	}
	return voices, nil
}

// PreviewVoice 为指定语音合成试听音频
func (s *VoiceService) PreviewVoice(ctx context.Context, voiceID string) (*tts.SpeechResult, error) {
	if voiceID == "" {
		return nil, apperrors.NewValidationError("语音ID不能为空", nil)
	}

	started := time.Now()
	res, err := s.provider.Synthesize(ctx, tts.SpeechRequest{
		Text:    PreviewText,
		VoiceID: voiceID,
		Format:  "mp3",
	})
	utils.GetMetricsCollector().RecordDuration("tts.preview_ms", started)
	if err != nil {
		if errors.Is(err, tts.ErrUnknownVoice) {
			return nil, apperrors.NewNotFoundError("Voice not found", err)
		}
		return nil, apperrors.NewUpstreamError("Failed to generate preview", err)
	}
	utils.GetMetricsCollector().IncrementCounter("tts.previews")
	return res, nil
}
