package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StorySpark/internal/config"
	"github.com/Corphon/StorySpark/internal/di"
)

type mockServer struct {
	shutdownCalled atomic.Bool
	stopped        chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{stopped: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	<-m.stopped
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdownCalled.Store(true)
	close(m.stopped)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:             "0",
		DataDir:          filepath.Join(dir, "data"),
		LogDir:           filepath.Join(dir, "logs"),
		StaticDir:        filepath.Join(dir, "static"),
		MaxScriptLength:  1000,
		AnalysisDelay:    10 * time.Millisecond,
		ProgressStep:     50,
		ProgressInterval: 5 * time.Millisecond,
		AuthSecret:       "test-secret",
	}
}

func TestCreateDirectories(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, CreateDirectories(cfg))

	for _, dir := range []string{cfg.DataDir, cfg.LogDir, filepath.Join(cfg.DataDir, "audio_jobs")} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestNewRegistersServices(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, CreateDirectories(cfg))
	require.NoError(t, config.InitConfig(cfg))

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.cleanup)

	for _, name := range []string{
		di.ServiceStorage, di.ServiceProgress, di.ServiceWizard, di.ServiceAnalyzer,
		di.ServiceVoice, di.ServiceAudio, di.ServiceStory, di.ServiceUser,
	} {
		assert.True(t, a.Container().Has(name), name)
	}

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 没有配置密钥时使用内置语音目录
	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/voices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"sarah"`)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestRunStopsOnSignal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, config.InitConfig(cfg))

	a, err := New(cfg)
	require.NoError(t, err)

	srv := newMockServer()
	a.server = srv

	go func() {
		time.Sleep(50 * time.Millisecond)
		a.stopChan <- syscall.SIGTERM
	}()

	require.NoError(t, a.Run())
	assert.True(t, srv.shutdownCalled.Load())
}
