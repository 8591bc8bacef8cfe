// internal/tts/providers/catalog/catalog.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/tts"
)

// Voices 离线语音目录，与创作页的可选语音一致
var Voices = []models.Voice{
	{ID: "sarah", Name: "Sarah", Description: "Warm Female Voice", Gender: "female"},
	{ID: "marcus", Name: "Marcus", Description: "Professional Male Voice", Gender: "male"},
	{ID: "emily", Name: "Emily", Description: "Young Female Voice", Gender: "female"},
	{ID: "david", Name: "David", Description: "Mature Male Voice", Gender: "male"},
	{ID: "luna", Name: "Luna", Description: "Sophisticated Female Voice", Gender: "female"},
}

func init() {
	tts.Register("catalog", func() tts.Provider {
		return &Provider{baseURL: "/static/voices"}
	})
}

// Provider 不访问网络，按语音ID返回预置样音地址
type Provider struct {
	baseURL string
}

func (p *Provider) Initialize(config map[string]string) error {
	if baseURL := config["base_url"]; baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	return nil
}

func (p *Provider) GetName() string {
	return "catalog"
}

func (p *Provider) ListVoices(ctx context.Context) ([]models.Voice, error) {
	out := make([]models.Voice, len(Voices))
	copy(out, Voices)
	return out, nil
}

func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) (*tts.SpeechResult, error) {
	if !Known(req.VoiceID) {
		return nil, fmt.Errorf("%w: %s", tts.ErrUnknownVoice, req.VoiceID)
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}
	return &tts.SpeechResult{
		AudioURL:     fmt.Sprintf("%s/%s.%s", p.baseURL, req.VoiceID, format),
		ProviderName: p.GetName(),
	}, nil
}

// Known 语音ID是否在目录中
func Known(voiceID string) bool {
	for _, v := range Voices {
		if v.ID == voiceID {
			return true
		}
	}
	return false
}
