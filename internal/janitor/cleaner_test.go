package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docjanitor/internal/metadata"
	"github.com/local/docjanitor/internal/retention"
)

type busyLock struct{ acquired bool }

func (l *busyLock) Acquire(context.Context) (bool, error) { return l.acquired, nil }
func (l *busyLock) Release(context.Context)               {}

func testPolicy() *retention.Policy {
	uploadAge := 24 * time.Hour
	resultAge := 7 * 24 * time.Hour
	tempAge := 24 * time.Hour
	noRemove := false
	return retention.New(retention.Overrides{
		UploadMaxAge:          &uploadAge,
		ResultMaxAge:          &resultAge,
		TempFileMaxAge:        &tempAge,
		RemoveAfterProcessing: &noRemove,
	})
}

func populate(t *testing.T, uploads, results, temp string) {
	t.Helper()
	old := time.Now().Add(-30 * 24 * time.Hour)

	writeBytes(t, filepath.Join(uploads, "old.pdf"), 100)
	require.NoError(t, os.Chtimes(filepath.Join(uploads, "old.pdf"), old, old))
	writeBytes(t, filepath.Join(uploads, "fresh.pdf"), 100)

	dir := filepath.Join(results, "doc1")
	require.NoError(t, metadata.Write(dir, metadata.Metadata{DocumentID: "doc1", Status: metadata.StatusSuccess}))
	require.NoError(t, os.Chtimes(filepath.Join(dir, metadata.FileName), old, old))
	require.NoError(t, os.Chtimes(dir, old, old))

	writeBytes(t, filepath.Join(temp, "docextract-old.bin"), 100)
	require.NoError(t, os.Chtimes(filepath.Join(temp, "docextract-old.bin"), old, old))
}

func TestCleanAll(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	cleaner := NewCleaner(Options{
		Policy:     testPolicy(),
		UploadDir:  uploads,
		ResultsDir: results,
		TempDir:    temp,
	})
	stats := cleaner.CleanAll()

	assert.Equal(t, 3, stats.TotalIdentified)
	assert.Equal(t, 3, stats.TotalRemoved)
	assert.Equal(t, int64(100), stats.UploadsBytesFreed)
	assert.Equal(t, int64(100), stats.TempFilesBytesFreed)
	assert.Greater(t, stats.ResultsBytesFreed, int64(0))
	assert.False(t, stats.DryRun)
	assert.NotEmpty(t, stats.Timestamp)
	assert.NotEmpty(t, stats.HumanReadableFreed)

	assert.NoFileExists(t, filepath.Join(uploads, "old.pdf"))
	assert.FileExists(t, filepath.Join(uploads, "fresh.pdf"))
	assert.NoDirExists(t, filepath.Join(results, "doc1"))
	assert.NoFileExists(t, filepath.Join(temp, "docextract-old.bin"))
}

func TestCleanAll_Idempotent(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	first := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
	}).CleanAll()
	require.Equal(t, 3, first.TotalRemoved)

	second := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
	}).CleanAll()

	assert.Equal(t, 0, second.TotalIdentified)
	assert.Equal(t, 0, second.TotalRemoved)
	assert.Equal(t, int64(0), second.TotalBytesFreed)
}

func TestCleanAll_DryRunLeavesEverything(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	stats := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
		DryRun: true,
	}).CleanAll()

	assert.Equal(t, 3, stats.TotalIdentified)
	assert.Equal(t, 3, stats.TotalRemoved)
	assert.True(t, stats.DryRun)
	assert.FileExists(t, filepath.Join(uploads, "old.pdf"))
	assert.DirExists(t, filepath.Join(results, "doc1"))
	assert.FileExists(t, filepath.Join(temp, "docextract-old.bin"))
}

func TestCleanAll_MissingResultsRootDoesNotBlockOtherCategories(t *testing.T) {
	uploads, temp := t.TempDir(), t.TempDir()
	old := time.Now().Add(-30 * 24 * time.Hour)
	writeBytes(t, filepath.Join(uploads, "old.pdf"), 100)
	require.NoError(t, os.Chtimes(filepath.Join(uploads, "old.pdf"), old, old))
	writeBytes(t, filepath.Join(temp, "docextract-old.bin"), 100)
	require.NoError(t, os.Chtimes(filepath.Join(temp, "docextract-old.bin"), old, old))

	stats := NewCleaner(Options{
		Policy:     testPolicy(),
		UploadDir:  uploads,
		ResultsDir: filepath.Join(t.TempDir(), "missing"),
		TempDir:    temp,
	}).CleanAll()

	// unreadable results root degrades to nothing identified there
	assert.Equal(t, 0, stats.ResultsIdentified)
	assert.Equal(t, 0, stats.ResultsRemoved)
	// the other categories still run
	assert.Equal(t, 1, stats.UploadsRemoved)
	assert.Equal(t, 1, stats.TempFilesRemoved)
	assert.NoFileExists(t, filepath.Join(uploads, "old.pdf"))
	assert.NoFileExists(t, filepath.Join(temp, "docextract-old.bin"))
}

func TestCleanAll_SkipsWhenLockHeld(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	stats := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
		Lock: &busyLock{acquired: false},
	}).CleanAll()

	assert.Equal(t, 0, stats.TotalRemoved)
	assert.FileExists(t, filepath.Join(uploads, "old.pdf"))
}

func TestCleanCategoryOnly_SkipsWhenLockHeld(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	stats := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
		Lock: &busyLock{acquired: false},
	}).CleanUploads()

	assert.Equal(t, 0, stats.UploadsRemoved)
	assert.FileExists(t, filepath.Join(uploads, "old.pdf"))
}

func TestCleanCategoryOnly(t *testing.T) {
	uploads, results, temp := t.TempDir(), t.TempDir(), t.TempDir()
	populate(t, uploads, results, temp)

	stats := NewCleaner(Options{
		Policy: testPolicy(), UploadDir: uploads, ResultsDir: results, TempDir: temp,
	}).CleanUploads()

	assert.Equal(t, 1, stats.UploadsRemoved)
	assert.Equal(t, 0, stats.ResultsRemoved)
	assert.NoFileExists(t, filepath.Join(uploads, "old.pdf"))
	// other categories untouched
	assert.DirExists(t, filepath.Join(results, "doc1"))
	assert.FileExists(t, filepath.Join(temp, "docextract-old.bin"))
}
