package janitor

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docjanitor/internal/metadata"
	"github.com/local/docjanitor/internal/retention"
)

func newTestScanner(t *testing.T, policy *retention.Policy) (*Scanner, string, string, string) {
	t.Helper()
	uploads := t.TempDir()
	results := t.TempDir()
	temp := t.TempDir()
	s := NewScanner(policy, uploads, results, temp, &Stats{})
	return s, uploads, results, temp
}

func writeAged(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func sorted(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

func TestIdentifyOldUploads_AgeScenario(t *testing.T) {
	maxAge := 24 * time.Hour
	f := false
	s, uploads, _, _ := newTestScanner(t, retention.New(retention.Overrides{
		UploadMaxAge:          &maxAge,
		RemoveAfterProcessing: &f,
	}))
	now := time.Now()
	s.now = func() time.Time { return now }

	for _, name := range []string{"a.pdf", "b.docx", "c.xlsx"} {
		writeAged(t, filepath.Join(uploads, name), 10, now)
	}
	old1 := filepath.Join(uploads, "old1.pdf")
	old2 := filepath.Join(uploads, "old2.docx")
	writeAged(t, old1, 10, now.Add(-48*time.Hour))
	writeAged(t, old2, 10, now.Add(-48*time.Hour))

	got := s.IdentifyOldUploads()
	assert.Equal(t, []string{old1, old2}, sorted(got))
	assert.Equal(t, 2, s.stats.UploadsIdentified)
}

func TestIdentifyOldUploads_AgeBoundaryIsStrict(t *testing.T) {
	maxAge := 24 * time.Hour
	f := false
	s, uploads, _, _ := newTestScanner(t, retention.New(retention.Overrides{
		UploadMaxAge:          &maxAge,
		RemoveAfterProcessing: &f,
	}))
	now := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return now }

	exact := filepath.Join(uploads, "exact.pdf")
	over := filepath.Join(uploads, "over.pdf")
	writeAged(t, exact, 10, now.Add(-maxAge))
	writeAged(t, over, 10, now.Add(-maxAge-time.Second))

	got := s.IdentifyOldUploads()
	assert.Equal(t, []string{over}, got)
}

func TestIdentifyOldUploads_ExemptExtension(t *testing.T) {
	maxAge := time.Hour
	s, uploads, _, _ := newTestScanner(t, retention.New(retention.Overrides{
		UploadMaxAge:     &maxAge,
		ExemptExtensions: []string{"pdf"},
	}))
	now := time.Now()
	s.now = func() time.Time { return now }

	writeAged(t, filepath.Join(uploads, "keep.PDF"), 10, now.Add(-240*time.Hour))
	doomed := filepath.Join(uploads, "doomed.docx")
	writeAged(t, doomed, 10, now.Add(-240*time.Hour))

	got := s.IdentifyOldUploads()
	assert.Equal(t, []string{doomed}, got)
}

func TestIdentifyOldUploads_SkipsDirectories(t *testing.T) {
	maxAge := time.Hour
	s, uploads, _, _ := newTestScanner(t, retention.New(retention.Overrides{UploadMaxAge: &maxAge}))
	now := time.Now()
	s.now = func() time.Time { return now }

	sub := filepath.Join(uploads, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.Chtimes(sub, now.Add(-100*time.Hour), now.Add(-100*time.Hour)))

	assert.Empty(t, s.IdentifyOldUploads())
}

func TestIdentifyOldUploads_RemoveAfterProcessing(t *testing.T) {
	s, uploads, results, _ := newTestScanner(t, retention.Default())
	now := time.Now()
	s.now = func() time.Time { return now }

	// fresh upload already processed into a successful result
	processed := filepath.Join(uploads, "5f2a-report.pdf")
	writeAged(t, processed, 10, now)
	require.NoError(t, metadata.Write(filepath.Join(results, "doc1"), metadata.Metadata{
		DocumentID:       "doc1",
		Status:           metadata.StatusSuccess,
		OriginalFilename: "report.pdf",
		UploadName:       "5f2a-report.pdf",
	}))

	// fresh upload whose result errored out
	failed := filepath.Join(uploads, "9c1b-other.pdf")
	writeAged(t, failed, 10, now)
	require.NoError(t, metadata.Write(filepath.Join(results, "doc2"), metadata.Metadata{
		DocumentID: "doc2",
		Status:     "error",
		UploadName: "9c1b-other.pdf",
	}))

	got := s.IdentifyOldUploads()
	assert.Equal(t, []string{processed}, got)
}

func TestIdentifyOldUploads_OriginalFilenameFallback(t *testing.T) {
	s, uploads, results, _ := newTestScanner(t, retention.Default())
	now := time.Now()
	s.now = func() time.Time { return now }

	// metadata written before upload_name existed: match on original name
	upload := filepath.Join(uploads, "scan.pdf")
	writeAged(t, upload, 10, now)
	unrelated := filepath.Join(uploads, "unrelated.pdf")
	writeAged(t, unrelated, 10, now)
	require.NoError(t, metadata.Write(filepath.Join(results, "doc1"), metadata.Metadata{
		Status:           metadata.StatusSuccess,
		OriginalFilename: "scan.pdf",
	}))

	got := s.IdentifyOldUploads()
	assert.Equal(t, []string{upload}, got)
}

func TestIdentifyOldResults_AgeScenario(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	tr := true
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{
		ResultMaxAge:       &maxAge,
		ConsiderLastAccess: &tr,
	}))
	now := time.Now()
	s.now = func() time.Time { return now }

	makeResult := func(id string, age time.Duration) string {
		dir := filepath.Join(results, id)
		require.NoError(t, metadata.Write(dir, metadata.Metadata{DocumentID: id, Status: metadata.StatusSuccess}))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(filepath.Join(dir, metadata.FileName), mtime, mtime))
		require.NoError(t, os.Chtimes(dir, mtime, mtime))
		return dir
	}

	old1 := makeResult("old1", 10*24*time.Hour)
	old2 := makeResult("old2", 10*24*time.Hour)
	makeResult("young1", 24*time.Hour)
	makeResult("young2", 24*time.Hour)
	makeResult("young3", 24*time.Hour)

	got := s.IdentifyOldResults()
	assert.Equal(t, []string{old1, old2}, sorted(got))
}

func TestIdentifyOldResults_LastAccessKeepsRecentlyTouched(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	tr := true
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{
		ResultMaxAge:       &maxAge,
		ConsiderLastAccess: &tr,
	}))
	now := time.Now()
	s.now = func() time.Time { return now }

	// old directory, but one artifact was touched recently
	dir := filepath.Join(results, "doc1")
	require.NoError(t, metadata.Write(dir, metadata.Metadata{DocumentID: "doc1"}))
	oldTime := now.Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, metadata.FileName), oldTime, oldTime))
	writeAged(t, filepath.Join(dir, "content.md"), 10, now.Add(-time.Hour))
	require.NoError(t, os.Chtimes(dir, oldTime, oldTime))

	assert.Empty(t, s.IdentifyOldResults())
}

func TestIdentifyOldResults_DirMtimeWhenLastAccessDisabled(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	f := false
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{
		ResultMaxAge:       &maxAge,
		ConsiderLastAccess: &f,
	}))
	now := time.Now()
	s.now = func() time.Time { return now }

	dir := filepath.Join(results, "doc1")
	require.NoError(t, metadata.Write(dir, metadata.Metadata{DocumentID: "doc1"}))
	writeAged(t, filepath.Join(dir, "content.md"), 10, now.Add(-time.Hour))
	oldTime := now.Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(dir, oldTime, oldTime))

	// directory mtime governs, recent file inside does not matter
	got := s.IdentifyOldResults()
	assert.Equal(t, []string{dir}, got)
}

func TestIdentifyOldResults_TagExempt(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{ResultMaxAge: &maxAge}))
	now := time.Now()
	s.now = func() time.Time { return now }

	dir := filepath.Join(results, "doc1")
	require.NoError(t, metadata.Write(dir, metadata.Metadata{
		DocumentID: "doc1",
		Tags:       []string{"important"},
	}))
	oldTime := now.Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, metadata.FileName), oldTime, oldTime))
	require.NoError(t, os.Chtimes(dir, oldTime, oldTime))

	assert.Empty(t, s.IdentifyOldResults())
}

func TestIdentify_MissingRootReturnsEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	s := NewScanner(retention.Default(), missing, missing, missing, &Stats{})

	assert.Empty(t, s.IdentifyOldUploads())
	assert.Empty(t, s.IdentifyOldResults())
	assert.Empty(t, s.IdentifyTempFiles())
	assert.Zero(t, s.stats.UploadsIdentified)
	assert.Zero(t, s.stats.ResultsIdentified)
	assert.Zero(t, s.stats.TempFilesIdentified)
}

func TestIdentifyOldResults_MissingMetadataMeansNoTags(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{ResultMaxAge: &maxAge}))
	now := time.Now()
	s.now = func() time.Time { return now }

	dir := filepath.Join(results, "doc1")
	require.NoError(t, os.Mkdir(dir, 0o755))
	oldTime := now.Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(dir, oldTime, oldTime))

	got := s.IdentifyOldResults()
	assert.Equal(t, []string{dir}, got)
}

func TestIdentifyOldResults_CorruptMetadataMeansNoTags(t *testing.T) {
	maxAge := 7 * 24 * time.Hour
	s, _, results, _ := newTestScanner(t, retention.New(retention.Overrides{ResultMaxAge: &maxAge}))
	now := time.Now()
	s.now = func() time.Time { return now }

	dir := filepath.Join(results, "doc1")
	require.NoError(t, os.Mkdir(dir, 0o755))
	oldTime := now.Add(-60 * 24 * time.Hour)
	writeAged(t, filepath.Join(dir, metadata.FileName), 5, oldTime) // not valid JSON
	require.NoError(t, os.Chtimes(dir, oldTime, oldTime))

	got := s.IdentifyOldResults()
	assert.Equal(t, []string{dir}, got)
}

func TestIdentifyTempFiles(t *testing.T) {
	maxAge := 24 * time.Hour
	s, _, _, temp := newTestScanner(t, retention.New(retention.Overrides{TempFileMaxAge: &maxAge}))
	now := time.Now()
	s.now = func() time.Time { return now }

	oldOurs := filepath.Join(temp, "docextract-123.pdf")
	writeAged(t, oldOurs, 10, now.Add(-48*time.Hour))
	writeAged(t, filepath.Join(temp, "docproc-fresh.bin"), 10, now)
	// foreign temp file, never touched no matter how old
	writeAged(t, filepath.Join(temp, "systemd-private-xyz"), 10, now.Add(-900*time.Hour))

	got := s.IdentifyTempFiles()
	assert.Equal(t, []string{oldOurs}, got)
}
