package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/llm"
)

type fakeLLM struct {
	text    string
	err     error
	lastReq llm.CompletionRequest
}

func (f *fakeLLM) Initialize(map[string]string) error { return nil }
func (f *fakeLLM) GetName() string                    { return "fake" }
func (f *fakeLLM) GetSupportedModels() []string       { return []string{"fake-1"} }
func (f *fakeLLM) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text}, nil
}

func TestNextScenePromptsProvider(t *testing.T) {
	provider := &fakeLLM{text: "The door creaks open."}
	svc := NewStoryService(provider, "fake-1")

	next, err := svc.NextScene(context.Background(), "A dark hallway.", "open the door")
	require.NoError(t, err)
	assert.Equal(t, "The door creaks open.", next)
	assert.Equal(t, "A dark hallway.\n\nUser says: open the door", provider.lastReq.Prompt)
	assert.Equal(t, "fake-1", provider.lastReq.Model)
}

func TestNextSceneEmptyResponse(t *testing.T) {
	svc := NewStoryService(&fakeLLM{text: "  "}, "")
	next, err := svc.NextScene(context.Background(), "scene", "cmd")
	require.NoError(t, err)
	assert.Equal(t, NoResponseText, next)
}

func TestNextSceneErrors(t *testing.T) {
	_, err := NewStoryService(nil, "").NextScene(context.Background(), "s", "c")
	assert.Error(t, err)

	_, err = NewStoryService(&fakeLLM{err: errors.New("quota")}, "").NextScene(context.Background(), "s", "c")
	assert.Equal(t, apperrors.ErrorTypeUpstream, apperrors.TypeOf(err))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "fake API call failed", appErr.Message)
}

func TestDetectCommand(t *testing.T) {
	svc := NewStoryService(nil, "")
	assert.Equal(t, DetectedCommand, svc.DetectCommand("base64-audio"))
}
