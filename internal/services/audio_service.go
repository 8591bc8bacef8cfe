// internal/services/audio_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/storage"
	"github.com/Corphon/StorySpark/internal/tts"
	"github.com/Corphon/StorySpark/internal/utils"
)

// NarratorSpeaker 没有说话人前缀的行归入旁白
const NarratorSpeaker = "NARRATOR"

// AudioCharacter 生成请求中的角色语音设置
type AudioCharacter struct {
	Name    string `json:"name"`
	VoiceID string `json:"voiceId"`
}

// AudioGenerateRequest 音频生成请求
type AudioGenerateRequest struct {
	Script     string                 `json:"script"`
	Characters []AudioCharacter       `json:"characters"`
	Settings   map[string]interface{} `json:"settings"`
}

// AudioServiceOptions 音频服务参数
type AudioServiceOptions struct {
	MaxScriptLength int
	MusicDir        string
	Concurrency     int           // 同时合成的片段数
	ProgressMaxAge  time.Duration // 结束的进度跟踪器保留时长
}

// AudioService 把剧本切分为片段并调用语音合成提供者
type AudioService struct {
	storage  *storage.FileStorage
	provider tts.Provider
	progress *ProgressService
	locks    *LockManager
	opts     AudioServiceOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAudioService 创建音频服务
func NewAudioService(fs *storage.FileStorage, provider tts.Provider, progress *ProgressService, locks *LockManager, opts AudioServiceOptions) *AudioService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ProgressMaxAge <= 0 {
		opts.ProgressMaxAge = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AudioService{
		storage:  fs,
		provider: provider,
		progress: progress,
		locks:    locks,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SegmentScript 按说话人切分剧本，相邻的同一说话人合并为一段
func SegmentScript(script string, voices map[string]string, fallbackVoice string) []models.AudioSegment {
	var segments []models.AudioSegment

	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		speaker, text := NarratorSpeaker, line
		if name, rest, found := strings.Cut(line, ":"); found && strings.TrimSpace(name) != "" {
			speaker, text = strings.TrimSpace(name), strings.TrimSpace(rest)
		}
		if text == "" {
			continue
		}

		voice := lookupVoice(voices, speaker)
		if voice == "" {
			voice = fallbackVoice
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == speaker && segments[n-1].VoiceID == voice {
			segments[n-1].Text += "\n" + text
			continue
		}
		segments = append(segments, models.AudioSegment{Speaker: speaker, VoiceID: voice, Text: text})
	}
	return segments
}

func lookupVoice(voices map[string]string, speaker string) string {
	if v, ok := voices[speaker]; ok {
		return v
	}
	for name, v := range voices {
		if strings.EqualFold(name, speaker) {
			return v
		}
	}
	return ""
}

// GenerateAudio 校验请求、创建任务并在后台合成
func (s *AudioService) GenerateAudio(req AudioGenerateRequest) (*models.AudioJob, error) {
	if err := ValidateScriptLength(req.Script, s.opts.MaxScriptLength); err != nil {
		return nil, err
	}
	if len(req.Characters) == 0 || req.Characters[0].VoiceID == "" {
		return nil, apperrors.NewValidationError("Missing 'voiceId' in characters", nil).WithCode("VOICE_REQUIRED")
	}

	voices := make(map[string]string, len(req.Characters))
	for _, c := range req.Characters {
		if c.VoiceID == "" {
			return nil, apperrors.NewValidationError(VoicesRequiredMessage, nil).WithCode("VOICES_REQUIRED")
		}
		if c.Name != "" {
			voices[c.Name] = c.VoiceID
		}
	}

	defaultVoice := req.Characters[0].VoiceID
	segments := SegmentScript(req.Script, voices, defaultVoice)
	if len(segments) == 0 {
		return nil, apperrors.NewValidationError("剧本内容为空", nil)
	}

	format := settingString(req.Settings, "format", "mp3")
	mood := settingString(req.Settings, "backgroundMusic", "")
	if mood != "" && !KnownMood(mood) {
		return nil, apperrors.NewValidationError("未知的音乐情绪: "+mood, nil)
	}

	now := time.Now()
	job := &models.AudioJob{
		JobID:     "audio_gen_" + uuid.NewString(),
		Status:    models.JobStatusPending,
		VoiceID:   defaultVoice,
		Segments:  segments,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mood != "" {
		job.MusicMood = mood
		job.MusicFile = s.musicFile(mood)
	}

	if err := s.storage.SaveDocument(storage.CollectionAudioJobs, job.JobID, job); err != nil {
		return nil, apperrors.NewProcessingError("保存音频任务失败", err)
	}

	s.progress.CleanupCompletedTasks(s.opts.ProgressMaxAge)
	s.progress.CreateTracker(job.JobID)

	utils.GetMetricsCollector().IncrementCounter("audio.jobs")
	utils.GetLogger().Info("创建音频任务", map[string]interface{}{
		"job_id":   job.JobID,
		"segments": len(segments),
		"provider": s.provider.GetName(),
	})

	// 后台协程写入各段的音频地址，不能与返回给调用方的任务共享切片
	work := append([]models.AudioSegment(nil), segments...)
	s.wg.Add(1)
	go s.run(job.JobID, work, format)

	return job, nil
}

func settingString(settings map[string]interface{}, key, fallback string) string {
	if v, ok := settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (s *AudioService) run(jobID string, segments []models.AudioSegment, format string) {
	defer s.wg.Done()
	started := time.Now()

	tracker := s.progress.CreateTracker(jobID)
	tracker.UpdateProgress(0, "开始合成音频")

	if err := s.updateJob(jobID, func(j *models.AudioJob) {
		j.Status = models.JobStatusRunning
	}); err != nil {
		tracker.Fail(err.Error())
		return
	}

	total := len(segments)
	var done atomic.Int32

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range segments {
		g.Go(func() error {
			res, err := s.provider.Synthesize(ctx, tts.SpeechRequest{
				Text:    segments[i].Text,
				VoiceID: segments[i].VoiceID,
				Format:  format,
			})
			if err != nil {
				return fmt.Errorf("合成第%d段失败(%s): %w", i+1, segments[i].Speaker, err)
			}
			segments[i].AudioURL = res.AudioURL

			n := int(done.Add(1))
			tracker.UpdateProgress(min(n*100/total, 99), fmt.Sprintf("已合成 %d/%d 段", n, total))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		utils.GetMetricsCollector().IncrementCounter("audio.jobs_failed")
		utils.GetLogger().Error("音频任务失败", map[string]interface{}{"job_id": jobID, "error": err})
		_ = s.updateJob(jobID, func(j *models.AudioJob) {
			j.Status = models.JobStatusFailed
			j.Error = err.Error()
		})
		tracker.Fail(err.Error())
		return
	}

	if err := s.updateJob(jobID, func(j *models.AudioJob) {
		j.Status = models.JobStatusCompleted
		j.Segments = segments
		j.AudioURL = segments[0].AudioURL
	}); err != nil {
		tracker.Fail(err.Error())
		return
	}

	tracker.Complete("音频生成完成")
	utils.GetMetricsCollector().RecordDuration("audio.generate_ms", started)
	utils.GetLogger().Info("音频任务完成", map[string]interface{}{
		"job_id":   jobID,
		"duration": time.Since(started).String(),
	})
}

// updateJob 在任务锁内读-改-写
func (s *AudioService) updateJob(jobID string, fn func(j *models.AudioJob)) error {
	return s.locks.ExecuteWithLock(jobID, func() error {
		var job models.AudioJob
		if err := s.storage.LoadDocument(storage.CollectionAudioJobs, jobID, &job); err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return apperrors.NewNotFoundError("Audio job not found", err)
			}
			return apperrors.NewProcessingError("读取音频任务失败", err)
		}
		fn(&job)
		job.UpdatedAt = time.Now()
		if err := s.storage.SaveDocument(storage.CollectionAudioJobs, jobID, &job); err != nil {
			return apperrors.NewProcessingError("保存音频任务失败", err)
		}
		return nil
	})
}

// GetJob 读取音频任务
func (s *AudioService) GetJob(jobID string) (*models.AudioJob, error) {
	var job models.AudioJob
	if err := s.storage.LoadDocument(storage.CollectionAudioJobs, jobID, &job); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return nil, apperrors.NewNotFoundError("Audio job not found", err)
		}
		return nil, apperrors.NewProcessingError("读取音频任务失败", err)
	}
	return &job, nil
}

// DownloadURL 仅已完成的任务可以下载
func (s *AudioService) DownloadURL(jobID string) (string, error) {
	job, err := s.GetJob(jobID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return "", apperrors.NewNotFoundError("Audio not ready", err)
		}
		return "", err
	}
	if job.Status != models.JobStatusCompleted {
		return "", apperrors.NewNotFoundError("Audio not ready", nil)
	}
	return job.AudioURL, nil
}

// ListMusic 背景音乐选项
func (s *AudioService) ListMusic() []models.MusicOption {
	out := make([]models.MusicOption, len(MusicOptions))
	copy(out, MusicOptions)
	return out
}

// ApplyMusic 为任务设置背景音乐
func (s *AudioService) ApplyMusic(jobID, mood string) (*models.AudioJob, error) {
	if !KnownMood(mood) {
		return nil, apperrors.NewValidationError("未知的音乐情绪: "+mood, nil)
	}

	musicFile := s.musicFile(mood)
	if err := s.updateJob(jobID, func(j *models.AudioJob) {
		j.MusicMood = mood
		j.MusicFile = musicFile
	}); err != nil {
		return nil, err
	}
	return s.GetJob(jobID)
}

// musicFile 音乐目录下存在 <mood>.mp3 时返回其路径
func (s *AudioService) musicFile(mood string) string {
	if s.opts.MusicDir == "" {
		return ""
	}
	path := filepath.Join(s.opts.MusicDir, mood+".mp3")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Close 取消进行中的合成并等待后台任务退出
func (s *AudioService) Close() {
	s.cancel()
	s.wg.Wait()
}
