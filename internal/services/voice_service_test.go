package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/tts"
)

func TestVoiceServiceCatalog(t *testing.T) {
	provider, err := tts.GetProvider("catalog", nil)
	require.NoError(t, err)
	svc := NewVoiceService(provider)

	voices, err := svc.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Len(t, voices, 5)

	res, err := svc.PreviewVoice(context.Background(), "marcus")
	require.NoError(t, err)
	assert.Equal(t, "/static/voices/marcus.mp3", res.AudioURL)

	_, err = svc.PreviewVoice(context.Background(), "nobody")
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = svc.PreviewVoice(context.Background(), "")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestVoiceServiceUpstreamError(t *testing.T) {
	svc := NewVoiceService(&failingProvider{})
	_, err := svc.ListVoices(context.Background())
	assert.Equal(t, apperrors.ErrorTypeUpstream, apperrors.TypeOf(err))
}
