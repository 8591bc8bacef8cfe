// internal/tts/providers/murf/murf.go
package murf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/tts"
)

const defaultBaseURL = "https://api.murf.ai"

func init() {
	tts.Register("murf", func() tts.Provider {
		return &Provider{baseURL: defaultBaseURL}
	})
}

// Provider 调用 Murf REST 接口
type Provider struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

type murfVoice struct {
	VoiceID     string `json:"voiceId"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Gender      string `json:"gender"`
	Locale      string `json:"locale"`
}

type generateRequest struct {
	VoiceID string `json:"voiceId"`
	Text    string `json:"text"`
	Format  string `json:"format"`
}

type generateResponse struct {
	AudioFile            string  `json:"audioFile"`
	AudioURL             string  `json:"audio_url"`
	AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("murf_api密钥未提供")
	}
	p.apiKey = apiKey

	if baseURL := config["base_url"]; baseURL != "" {
		p.baseURL = baseURL
	}

	p.client = resty.New().
		SetBaseURL(p.baseURL).
		SetTimeout(60*time.Second).
		SetHeader("api-key", p.apiKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return nil
}

func (p *Provider) GetName() string {
	return "murf"
}

func (p *Provider) ListVoices(ctx context.Context) ([]models.Voice, error) {
	var voices []murfVoice
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&voices).
		Get("/v1/speech/voices")
	if err != nil {
		return nil, fmt.Errorf("murf 请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("murf API错误(%d): %s", resp.StatusCode(), resp.String())
	}

	out := make([]models.Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, models.Voice{
			ID:          v.VoiceID,
			Name:        v.DisplayName,
			Description: v.Description,
			Gender:      v.Gender,
			Locale:      v.Locale,
		})
	}
	return out, nil
}

func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (*tts.SpeechResult, error) {
	if req.VoiceID == "" {
		return nil, fmt.Errorf("%w: 空语音ID", tts.ErrUnknownVoice)
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}

	var out generateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(generateRequest{VoiceID: req.VoiceID, Text: req.Text, Format: format}).
		SetResult(&out).
		Post("/v1/speech/generate")
	if err != nil {
		return nil, fmt.Errorf("murf 请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("murf API错误(%d): %s", resp.StatusCode(), resp.String())
	}

	audioURL := out.AudioFile
	if audioURL == "" {
		audioURL = out.AudioURL
	}
	if audioURL == "" {
		return nil, errors.New("murf 未返回音频地址")
	}

	return &tts.SpeechResult{
		AudioURL:        audioURL,
		DurationSeconds: out.AudioLengthInSeconds,
		ProviderName:    p.GetName(),
	}, nil
}
