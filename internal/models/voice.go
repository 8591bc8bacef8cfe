// internal/models/voice.go
package models

// Voice 可选的配音语音
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

// MusicOption 背景音乐情绪选项
type MusicOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
