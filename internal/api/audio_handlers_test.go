package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StorySpark/internal/models"
)

func TestAnalyzeScriptEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodPost, "/api/analyze/script", map[string]interface{}{
		"script":  "SARAH: hi\nBOB: yo\nSARAH: again",
		"options": map[string]interface{}{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var job models.AnalysisJob
	decode(t, w, &job)
	assert.True(t, strings.HasPrefix(job.JobID, "analysis_"))
	require.Len(t, job.Characters, 2)
	assert.Equal(t, "SARAH", job.Characters[0].Name)
	assert.Equal(t, 2, job.Characters[0].DialogueCount)

	w = srv.request(http.MethodGet, "/api/analyze/status/"+job.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var loaded models.AnalysisJob
	decode(t, w, &loaded)
	assert.Equal(t, job.Characters, loaded.Characters)

	w = srv.request(http.MethodGet, "/api/analyze/status/analysis_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeScriptTooLong(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodPost, "/api/analyze/script", map[string]string{
		"script": strings.Repeat("a", 201),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "SCRIPT_TOO_LONG", env.Error.Code)
	assert.Equal(t, "Script too long. Max allowed is 200 characters.", env.Error.Message)
}

func TestVoiceEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodGet, "/api/voices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var voices []models.Voice
	decode(t, w, &voices)
	assert.Len(t, voices, 5)

	w = srv.request(http.MethodPost, "/api/voices/sarah/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview map[string]string
	decode(t, w, &preview)
	assert.Equal(t, "/static/voices/sarah.mp3", preview["preview_url"])

	w = srv.request(http.MethodPost, "/api/voices/nobody/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAudioGenerationLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodGet, "/api/audio/audio_gen_missing/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.request(http.MethodPost, "/api/audio/generate", map[string]interface{}{
		"script":     "SARAH: hi\nMARCUS: hello",
		"characters": []map[string]string{{"name": "SARAH"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VOICE_REQUIRED", decode(t, w, nil).Error.Code)

	w = srv.request(http.MethodPost, "/api/audio/generate", map[string]interface{}{
		"script": "SARAH: hi\nMARCUS: hello",
		"characters": []map[string]string{
			{"name": "SARAH", "voiceId": "sarah"},
			{"name": "MARCUS", "voiceId": "marcus"},
		},
		"settings": map[string]string{"backgroundMusic": "dramatic"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted struct {
		JobID string `json:"jobId"`
	}
	decode(t, w, &accepted)
	require.True(t, strings.HasPrefix(accepted.JobID, "audio_gen_"))

	var job models.AudioJob
	require.Eventually(t, func() bool {
		w := srv.request(http.MethodGet, "/api/audio/status/"+accepted.JobID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		decode(t, w, &job)
		return job.Status == models.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, job.Segments, 2)
	assert.Equal(t, "/static/voices/sarah.mp3", job.AudioURL)
	assert.Equal(t, "dramatic", job.MusicMood)

	w = srv.request(http.MethodGet, "/api/audio/"+accepted.JobID+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var download map[string]string
	decode(t, w, &download)
	assert.Equal(t, job.AudioURL, download["downloadUrl"])

	// 结束的任务订阅后立即收到最终状态
	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+accepted.JobID, nil)
	w = srv.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: connected")
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = srv.request(http.MethodGet, "/api/progress/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMusicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodGet, "/api/music", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var options []models.MusicOption
	decode(t, w, &options)
	assert.Len(t, options, 5)

	w = srv.request(http.MethodPost, "/api/music/apply", map[string]string{"jobId": "audio_gen_x", "mood": "polka"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.request(http.MethodPost, "/api/music/apply", map[string]string{"jobId": "audio_gen_x", "mood": "romance"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.request(http.MethodPost, "/api/music/apply", map[string]string{"mood": "romance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.upload(t, "/api/files/upload", "script.txt", "text/plain", "SARAH: hi")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded map[string]interface{}
	env := decode(t, w, &uploaded)
	assert.Equal(t, "SARAH: hi", uploaded["content"])
	assert.Equal(t, "File 'script.txt' uploaded successfully.", env.Message)

	w = srv.upload(t, "/api/files/upload", "script.pdf", "application/pdf", "%PDF")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorFileInvalid, decode(t, w, nil).Error.Code)

	w = srv.upload(t, "/api/files/validate", "script.txt", "text/plain", "no speakers")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid script format", decode(t, w, nil).Error.Message)

	w = srv.upload(t, "/api/files/validate", "script.txt", "text/plain", "SARAH: hi")
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.request(http.MethodPost, "/api/files/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 恰好在上限内的文件原样返回，多一个字节就拒绝
	atLimit := "SARAH: " + strings.Repeat("a", maxImportSize-len("SARAH: "))
	w = srv.upload(t, "/api/files/upload", "big.txt", "text/plain", atLimit)
	require.Equal(t, http.StatusOK, w.Code)
	uploaded = nil
	decode(t, w, &uploaded)
	assert.Equal(t, atLimit, uploaded["content"])

	for _, path := range []string{"/api/files/upload", "/api/files/validate"} {
		w = srv.upload(t, path, "big.txt", "text/plain", atLimit+"a")
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, path)
		assert.Equal(t, ErrorFileInvalid, decode(t, w, nil).Error.Code, path)
	}
}
