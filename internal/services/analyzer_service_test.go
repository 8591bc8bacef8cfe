package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/storage"
)

func newTestStorage(t *testing.T) *storage.FileStorage {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(fs.Close)
	return fs
}

func TestDetectSpeakers(t *testing.T) {
	got := DetectSpeakers(SampleStory)

	assert.Equal(t, []models.DetectedCharacter{
		{Name: "Chapter 1", DialogueCount: 1, EstimatedGender: "unknown"},
		{Name: "SARAH", DialogueCount: 3, EstimatedGender: "unknown"},
		{Name: "MARCUS", DialogueCount: 2, EstimatedGender: "unknown"},
		{Name: "NARRATOR", DialogueCount: 2, EstimatedGender: "unknown"},
	}, got)
}

func TestDetectSpeakersSkipsLinesWithoutSpeaker(t *testing.T) {
	got := DetectSpeakers("no colon here\n: empty name\nBOB: hi\r\nBOB: again")
	require.Len(t, got, 1)
	assert.Equal(t, "BOB", got[0].Name)
	assert.Equal(t, 2, got[0].DialogueCount)

	assert.Empty(t, DetectSpeakers(""))
}

func TestAnalyzeScriptPersistsJob(t *testing.T) {
	svc := NewAnalyzerService(newTestStorage(t), 1000)

	job, err := svc.AnalyzeScript("A: one\nB: two\nA: three")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.JobID, "analysis_"))
	require.Len(t, job.Characters, 2)

	loaded, err := svc.GetJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.Characters, loaded.Characters)

	_, err = svc.GetJob("analysis_missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestAnalyzeScriptRejectsLongScripts(t *testing.T) {
	svc := NewAnalyzerService(newTestStorage(t), 10)

	_, err := svc.AnalyzeScript(strings.Repeat("x", 11))
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.AnalyzeScript("ÄÖÜ: äöü")
	assert.NoError(t, err)
}

func TestValidateScriptContent(t *testing.T) {
	assert.NoError(t, ValidateScriptContent("SARAH: hello"))

	for _, content := range []string{"", "   \n", "no speakers in this text"} {
		err := ValidateScriptContent(content)
		require.Error(t, err, content)
		assert.True(t, apperrors.IsValidationError(err))
	}
}
