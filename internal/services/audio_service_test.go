package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/tts"
	_ "github.com/Corphon/StorySpark/internal/tts/providers/catalog"
)

type failingProvider struct {
	calls atomic.Int32
}

func (p *failingProvider) Initialize(map[string]string) error { return nil }
func (p *failingProvider) GetName() string                    { return "failing" }
func (p *failingProvider) ListVoices(context.Context) ([]models.Voice, error) {
	return nil, errors.New("boom")
}
func (p *failingProvider) Synthesize(context.Context, tts.SpeechRequest) (*tts.SpeechResult, error) {
	p.calls.Add(1)
	return nil, errors.New("upstream down")
}

func newTestAudioService(t *testing.T, provider tts.Provider, musicDir string) (*AudioService, *ProgressService) {
	t.Helper()
	if provider == nil {
		var err error
		provider, err = tts.GetProvider("catalog", nil)
		require.NoError(t, err)
	}
	progress := NewProgressService()
	locks := NewLockManager(time.Minute)
	svc := NewAudioService(newTestStorage(t), provider, progress, locks, AudioServiceOptions{
		MaxScriptLength: 5000,
		MusicDir:        musicDir,
		Concurrency:     2,
	})
	t.Cleanup(func() {
		svc.Close()
		locks.Stop()
	})
	return svc, progress
}

func waitForJob(t *testing.T, svc *AudioService, jobID string) *models.AudioJob {
	t.Helper()
	var job *models.AudioJob
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.GetJob(jobID)
		return err == nil && job.IsFinished()
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestSegmentScript(t *testing.T) {
	segments := SegmentScript(SampleStory, map[string]string{
		"sarah":  "sarah",
		"MARCUS": "marcus",
	}, "luna")

	require.NotEmpty(t, segments)
	assert.Equal(t, "Chapter 1", segments[0].Speaker)
	assert.Equal(t, "luna", segments[0].VoiceID)
	assert.Equal(t, "SARAH", segments[1].Speaker)
	assert.Equal(t, "sarah", segments[1].VoiceID)
	assert.Equal(t, "marcus", segments[2].VoiceID)

	merged := SegmentScript("plain line\nanother line\nBOB: hi", nil, "david")
	require.Len(t, merged, 2)
	assert.Equal(t, NarratorSpeaker, merged[0].Speaker)
	assert.Equal(t, "plain line\nanother line", merged[0].Text)
}

func TestGenerateAudioValidation(t *testing.T) {
	svc, _ := newTestAudioService(t, nil, "")

	_, err := svc.GenerateAudio(AudioGenerateRequest{Script: "A: hi"})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.GenerateAudio(AudioGenerateRequest{Script: "A: hi", Characters: []AudioCharacter{{Name: "A"}}})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.GenerateAudio(AudioGenerateRequest{
		Script:     "A: hi",
		Characters: []AudioCharacter{{Name: "A", VoiceID: "sarah"}, {Name: "B"}},
	})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.GenerateAudio(AudioGenerateRequest{
		Script:     strings.Repeat("x", 5001),
		Characters: []AudioCharacter{{Name: "A", VoiceID: "sarah"}},
	})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGenerateAudioCompletes(t *testing.T) {
	svc, progress := newTestAudioService(t, nil, "")

	job, err := svc.GenerateAudio(AudioGenerateRequest{
		Script: SampleStory,
		Characters: []AudioCharacter{
			{Name: "SARAH", VoiceID: "sarah"},
			{Name: "MARCUS", VoiceID: "marcus"},
			{Name: "NARRATOR", VoiceID: "luna"},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.JobID, "audio_gen_"))
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, "sarah", job.VoiceID)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	for _, seg := range done.Segments {
		assert.NotEmpty(t, seg.AudioURL)
	}
	assert.Equal(t, "/static/voices/sarah.mp3", done.AudioURL)

	url, err := svc.DownloadURL(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, done.AudioURL, url)

	tracker, ok := progress.GetTracker(job.JobID)
	require.True(t, ok)
	<-tracker.Done
	assert.Equal(t, ProgressCompleted, tracker.Snapshot().Status)
	assert.Equal(t, 100, tracker.Snapshot().Progress)
}

func TestGenerateAudioFailure(t *testing.T) {
	provider := &failingProvider{}
	svc, _ := newTestAudioService(t, provider, "")

	job, err := svc.GenerateAudio(AudioGenerateRequest{
		Script:     "A: one\nB: two",
		Characters: []AudioCharacter{{Name: "A", VoiceID: "v"}},
	})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.JobID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "upstream down")

	_, err = svc.DownloadURL(job.JobID)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDownloadUnknownJob(t *testing.T) {
	svc, _ := newTestAudioService(t, nil, "")
	_, err := svc.DownloadURL("audio_gen_missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestApplyMusic(t *testing.T) {
	musicDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(musicDir, "mystery.mp3"), []byte("id3"), 0644))
	svc, _ := newTestAudioService(t, nil, musicDir)

	job, err := svc.GenerateAudio(AudioGenerateRequest{
		Script:     "A: hello",
		Characters: []AudioCharacter{{Name: "A", VoiceID: "emily"}},
	})
	require.NoError(t, err)
	waitForJob(t, svc, job.JobID)

	updated, err := svc.ApplyMusic(job.JobID, "mystery")
	require.NoError(t, err)
	assert.Equal(t, "mystery", updated.MusicMood)
	assert.Equal(t, filepath.Join(musicDir, "mystery.mp3"), updated.MusicFile)
	assert.Equal(t, models.JobStatusCompleted, updated.Status)

	updated, err = svc.ApplyMusic(job.JobID, "peaceful")
	require.NoError(t, err)
	assert.Empty(t, updated.MusicFile)

	_, err = svc.ApplyMusic(job.JobID, "polka")
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.ApplyMusic("audio_gen_missing", "mystery")
	assert.True(t, apperrors.IsNotFoundError(err))

	assert.Len(t, svc.ListMusic(), len(MusicOptions))
}
