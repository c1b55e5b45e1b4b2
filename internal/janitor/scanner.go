package janitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/docjanitor/internal/metadata"
	"github.com/local/docjanitor/internal/retention"
)

// tempFilePrefixes are the names our processing helpers create under the
// system temp directory. Anything else in there is never touched.
var tempFilePrefixes = []string{"docextract-", "docproc-"}

// Scanner walks the managed roots and applies the retention policy to
// produce candidate-for-deletion sets. It holds no state beyond its
// configuration, so independent scanners over independent roots are safe.
type Scanner struct {
	policy     *retention.Policy
	uploadDir  string
	resultsDir string
	tempDir    string
	stats      *Stats
	now        func() time.Time
}

// NewScanner builds a scanner over the given roots. An empty tempDir
// falls back to the system temp directory.
func NewScanner(policy *retention.Policy, uploadDir, resultsDir, tempDir string, stats *Stats) *Scanner {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Scanner{
		policy:     policy,
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		tempDir:    tempDir,
		stats:      stats,
		now:        time.Now,
	}
}

// IdentifyOldUploads returns upload files eligible for removal: files
// strictly older than the upload max age, plus files whose processing
// already produced a successful result when the policy says to remove
// uploads after processing. Exempt extensions are never returned.
func (s *Scanner) IdentifyOldUploads() []string {
	maxAge := s.policy.UploadMaxAge()
	now := s.now()
	processed := s.processedUploads()

	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.uploadDir).Msg("failed to list uploads directory")
		return nil
	}

	var old []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.uploadDir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to stat upload")
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if s.policy.ExtensionExempt(filepath.Ext(entry.Name())) {
			log.Debug().Str("path", path).Msg("upload exempt by extension")
			continue
		}

		age := now.Sub(info.ModTime())
		_, wasProcessed := processed[entry.Name()]
		if age > maxAge || (wasProcessed && s.policy.RemoveAfterProcessing()) {
			old = append(old, path)
			s.stats.addIdentified(CategoryUploads, 1)
			log.Debug().Str("path", path).Dur("age", age).Msg("obsolete upload identified")
		}
	}
	return old
}

// IdentifyOldResults returns result directories whose reference time is
// strictly older than the results max age. Directories whose metadata
// tags intersect the exempt set are skipped; unreadable metadata counts
// as an empty tag list.
func (s *Scanner) IdentifyOldResults() []string {
	maxAge := s.policy.ResultMaxAge()
	now := s.now()

	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.resultsDir).Msg("failed to list results directory")
		return nil
	}

	var old []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.resultsDir, entry.Name())

		meta, err := metadata.Read(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("dir", dir).Msg("no result metadata, treating as untagged")
			} else {
				log.Warn().Err(err).Str("dir", dir).Msg("unreadable result metadata, treating as untagged")
			}
		}
		if s.policy.ResultExempt(meta.Tags) {
			log.Debug().Str("dir", dir).Strs("tags", meta.Tags).Msg("result exempt by tag")
			continue
		}

		ref, err := s.referenceTime(dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to determine result reference time")
			continue
		}

		if now.Sub(ref) > maxAge {
			old = append(old, dir)
			s.stats.addIdentified(CategoryResults, 1)
			log.Debug().Str("dir", dir).Time("reference", ref).Msg("obsolete result identified")
		}
	}
	return old
}

// IdentifyTempFiles returns files in the temp directory matching our
// known prefixes that are strictly older than the temp max age.
func (s *Scanner) IdentifyTempFiles() []string {
	maxAge := s.policy.TempFileMaxAge()
	now := s.now()

	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.tempDir).Msg("failed to list temp directory")
		return nil
	}

	var old []string
	for _, entry := range entries {
		if entry.IsDir() || !hasTempPrefix(entry.Name()) {
			continue
		}
		path := filepath.Join(s.tempDir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to stat temp file")
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			old = append(old, path)
			s.stats.addIdentified(CategoryTempFiles, 1)
			log.Debug().Str("path", path).Msg("obsolete temp file identified")
		}
	}
	return old
}

// referenceTime picks the timestamp a result directory is aged against:
// the newest mtime of any file inside it when last-access tracking is on,
// otherwise the directory's own mtime.
func (s *Scanner) referenceTime(dir string) (time.Time, error) {
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	if !s.policy.ConsiderLastAccess() {
		return dirInfo.ModTime(), nil
	}

	var latest time.Time
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			// skip the broken entry, keep walking
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil || latest.IsZero() {
		return dirInfo.ModTime(), nil
	}
	return latest, nil
}

// processedUploads maps stored upload names to the successful results
// that reference them. Metadata recording the generated upload name is
// matched exactly; older metadata falls back to the original filename.
func (s *Scanner) processedUploads() map[string]struct{} {
	processed := make(map[string]struct{})

	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		log.Error().Err(err).Str("dir", s.resultsDir).Msg("failed to list results for upload correlation")
		return processed
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.resultsDir, entry.Name())
		meta, err := metadata.Read(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("dir", dir).Msg("unreadable result metadata during upload correlation")
			}
			continue
		}
		if meta.Status != metadata.StatusSuccess {
			continue
		}
		if meta.UploadName != "" {
			processed[meta.UploadName] = struct{}{}
		} else if meta.OriginalFilename != "" {
			// best-effort correlation for metadata written before
			// upload_name existed; ambiguous when names collide
			processed[meta.OriginalFilename] = struct{}{}
		}
	}
	return processed
}

func hasTempPrefix(name string) bool {
	for _, p := range tempFilePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
