package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/services"
)

func (s *testServer) state(t *testing.T) models.WorkspaceState {
	t.Helper()
	w := s.request(http.MethodGet, "/api/workspace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state models.WorkspaceState
	decode(t, w, &state)
	return state
}

func TestWorkspaceInitialState(t *testing.T) {
	srv := newTestServer(t)

	state := srv.state(t)
	assert.Empty(t, state.Story)
	assert.Empty(t, state.Characters)
	assert.Equal(t, models.TabScript, state.ActiveTab)
	assert.Zero(t, state.Progress)
	assert.NotEmpty(t, state.SessionID)

	require.NotEmpty(t, srv.cookies)
	assert.Equal(t, state.SessionID, srv.state(t).SessionID, "会话 cookie 应当复用同一个工作区")
}

func TestWorkspaceFullFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodPost, "/api/workspace/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state models.WorkspaceState
	decode(t, w, &state)
	assert.False(t, state.Analyzing, "空白剧本不触发分析")

	w = srv.request(http.MethodPost, "/api/workspace/sample", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.Equal(t, services.SampleStory, state.Story)

	w = srv.request(http.MethodPost, "/api/workspace/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.True(t, state.Analyzing)
	assert.Equal(t, models.TabCharacters, state.ActiveTab)

	require.Eventually(t, func() bool {
		return len(srv.state(t).Characters) == 3
	}, time.Second, 10*time.Millisecond)

	w = srv.request(http.MethodPost, "/api/workspace/generate", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VOICES_REQUIRED", env.Error.Code)
	assert.Equal(t, services.VoicesRequiredMessage, env.Error.Message)

	for name, voice := range map[string]string{"SARAH": "sarah", "MARCUS": "marcus", "NARRATOR": "luna"} {
		w = srv.request(http.MethodPut, "/api/workspace/characters/"+name+"/voice", map[string]string{"voice": voice})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = srv.request(http.MethodPost, "/api/workspace/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.True(t, state.Generating)
	assert.Equal(t, models.TabGenerate, state.ActiveTab)

	require.Eventually(t, func() bool {
		s := srv.state(t)
		return s.AudioGenerated && s.Progress == 100 && !s.Generating
	}, time.Second, 10*time.Millisecond)

	w = srv.request(http.MethodPost, "/api/workspace/playback", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.True(t, state.Playing)

	w = srv.request(http.MethodPost, "/api/workspace/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.Empty(t, state.Story)
	assert.Empty(t, state.Characters)
	assert.Zero(t, state.Progress)
	assert.False(t, state.AudioGenerated)
	assert.False(t, state.Playing)
}

func TestWorkspaceTabAndMusicValidation(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodPut, "/api/workspace/tab", map[string]string{"tab": models.TabSettings})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TAB_UNAVAILABLE", decode(t, w, nil).Error.Code)

	w = srv.request(http.MethodPut, "/api/workspace/music", map[string]string{"mood": "polka"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.request(http.MethodPut, "/api/workspace/music", map[string]string{"mood": "mystery"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mystery", srv.state(t).BackgroundMusic)
}

func TestWorkspaceImport(t *testing.T) {
	srv := newTestServer(t)

	content := "ALICE: hello\r\nBOB: hi  \n"
	w := srv.upload(t, "/api/workspace/import", "story.txt", "text/plain; charset=utf-8", content)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, content, srv.state(t).Story)

	w = srv.upload(t, "/api/workspace/import", "cover.png", "image/png", "\x89PNG")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, content, srv.state(t).Story)

	w = srv.upload(t, "/api/workspace/import", "huge.txt", "text/plain", strings.Repeat("a", maxImportSize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, content, srv.state(t).Story)
}

func TestWorkspacesAreIsolatedPerSession(t *testing.T) {
	srv := newTestServer(t)

	w := srv.request(http.MethodPost, "/api/workspace/story", map[string]string{"story": "mine"})
	require.Equal(t, http.StatusOK, w.Code)

	other := &testServer{router: srv.router, handler: srv.handler}
	assert.Empty(t, other.state(t).Story)
	assert.Equal(t, "mine", srv.state(t).Story)
	assert.Equal(t, 2, srv.handler.Wizard.Count())
}
