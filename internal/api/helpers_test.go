package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StorySpark/internal/di"
	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/storage"
	"github.com/Corphon/StorySpark/internal/tts"
	_ "github.com/Corphon/StorySpark/internal/tts/providers/catalog"
)

type testServer struct {
	router  *gin.Engine
	handler *Handler
	cookies []*http.Cookie
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	provider, err := tts.GetProvider("catalog", nil)
	require.NoError(t, err)

	progress := services.NewProgressService()
	locks := services.NewLockManager(time.Minute)
	wizard := services.NewWizardService(services.WorkspaceOptions{
		AnalysisDelay:    10 * time.Millisecond,
		ProgressStep:     50,
		ProgressInterval: 5 * time.Millisecond,
	}, 0)
	audio := services.NewAudioService(fs, provider, progress, locks, services.AudioServiceOptions{
		MaxScriptLength: 200,
		Concurrency:     2,
	})

	container := di.NewContainer()
	container.Register(di.ServiceWizard, wizard)
	container.Register(di.ServiceAnalyzer, services.NewAnalyzerService(fs, 200))
	container.Register(di.ServiceVoice, services.NewVoiceService(provider))
	container.Register(di.ServiceAudio, audio)
	container.Register(di.ServiceStory, services.NewStoryService(nil, ""))
	container.Register(di.ServiceUser, services.NewUserService([]byte("test-secret"), time.Hour))
	container.Register(di.ServiceProgress, progress)

	router, handler, err := SetupRouter(container, RouterOptions{})
	require.NoError(t, err)

	t.Cleanup(func() {
		handler.Close()
		wizard.Close()
		audio.Close()
		locks.Stop()
		fs.Close()
	})
	return &testServer{router: router, handler: handler}
}

// do 发送请求并保留会话 cookie，模拟同一个浏览器
func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		s.cookies = mergeCookies(s.cookies, cookies)
	}
	return w
}

func mergeCookies(existing, fresh []*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(existing)+len(fresh))
	seen := make(map[string]bool)
	for _, c := range fresh {
		seen[c.Name] = true
		out = append(out, c)
	}
	for _, c := range existing {
		if !seen[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

func (s *testServer) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(req)
}

func (s *testServer) upload(t *testing.T, path, filename, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
