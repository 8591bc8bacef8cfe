package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sampleDoc struct {
	Status string `json:"status"`
}

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(fs.Close)
	return fs
}

func TestSaveAndLoadDocument(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveDocument(CollectionAudioJobs, "audio_gen_1", sampleDoc{Status: "completed"}))

	var got sampleDoc
	require.NoError(t, fs.LoadDocument(CollectionAudioJobs, "audio_gen_1", &got))
	assert.Equal(t, "completed", got.Status)
	assert.True(t, fs.DocumentExists(CollectionAudioJobs, "audio_gen_1"))
	assert.NoFileExists(t, filepath.Join(fs.BaseDir, CollectionAudioJobs, "audio_gen_1.json.tmp"))
}

func TestLoadMissingDocument(t *testing.T) {
	fs := newTestStorage(t)

	var got sampleDoc
	err := fs.LoadDocument(CollectionAnalysisJobs, "missing", &got)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
	assert.False(t, fs.DocumentExists(CollectionAnalysisJobs, "missing"))
}

func TestOverwriteRefreshesCache(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveDocument(CollectionAudioJobs, "job", sampleDoc{Status: "running"}))
	var first sampleDoc
	require.NoError(t, fs.LoadDocument(CollectionAudioJobs, "job", &first))

	require.NoError(t, fs.SaveDocument(CollectionAudioJobs, "job", sampleDoc{Status: "completed"}))
	var second sampleDoc
	require.NoError(t, fs.LoadDocument(CollectionAudioJobs, "job", &second))

	assert.Equal(t, "running", first.Status)
	assert.Equal(t, "completed", second.Status)
}

func TestRejectsTraversalIDs(t *testing.T) {
	fs := newTestStorage(t)

	assert.Error(t, fs.SaveDocument(CollectionAudioJobs, "../escape", sampleDoc{}))
	assert.Error(t, fs.SaveDocument(CollectionAudioJobs, "", sampleDoc{}))
}

func TestListAndDeleteDocuments(t *testing.T) {
	fs := newTestStorage(t)

	ids, err := fs.ListDocuments(CollectionAnalysisJobs)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, fs.SaveDocument(CollectionAnalysisJobs, "b", sampleDoc{}))
	require.NoError(t, fs.SaveDocument(CollectionAnalysisJobs, "a", sampleDoc{}))
	require.NoError(t, os.WriteFile(filepath.Join(fs.BaseDir, CollectionAnalysisJobs, "notes.txt"), []byte("x"), 0644))

	ids, err = fs.ListDocuments(CollectionAnalysisJobs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, fs.DeleteDocument(CollectionAnalysisJobs, "a"))
	assert.ErrorIs(t, fs.DeleteDocument(CollectionAnalysisJobs, "a"), ErrDocumentNotFound)
}

func TestCloseStopsCleanupLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	fs.Close()
	fs.Close()
}
