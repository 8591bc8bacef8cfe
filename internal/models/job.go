// internal/models/job.go
package models

import "time"

// 音频任务状态
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// AnalysisJob 一次脚本分析的持久化结果
type AnalysisJob struct {
	JobID      string              `json:"jobId"`
	Characters []DetectedCharacter `json:"characters"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// AudioSegment 按说话人切分后的一段合成音频
type AudioSegment struct {
	Speaker  string `json:"speaker"`
	VoiceID  string `json:"voiceId"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// AudioJob 一次音频生成任务
type AudioJob struct {
	JobID     string         `json:"jobId"`
	Status    string         `json:"status"`
	VoiceID   string         `json:"voiceId"`
	AudioURL  string         `json:"audioUrl,omitempty"`
	Segments  []AudioSegment `json:"segments,omitempty"`
	MusicMood string         `json:"musicMood,omitempty"`
	MusicFile string         `json:"musicFile,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// IsFinished 任务是否已结束
func (j *AudioJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
