package janitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Archiver copies a doomed path (file or directory) somewhere durable
// before it is deleted. Implementations live outside this package.
type Archiver interface {
	Archive(ctx context.Context, path string, category string) error
}

// Remover deletes candidate paths for one category at a time, tolerating
// per-item failure. In dry-run mode nothing is touched but counts and
// bytes reflect the would-be impact, so operators can preview a policy
// change before committing to it.
type Remover struct {
	dryRun   bool
	stats    *Stats
	archiver Archiver
}

// NewRemover builds a remover writing into the given stats accumulator.
// archiver may be nil.
func NewRemover(dryRun bool, stats *Stats, archiver Archiver) *Remover {
	return &Remover{dryRun: dryRun, stats: stats, archiver: archiver}
}

// RemoveFiles deletes (or simulates deleting) every path in the list.
// It never returns an error; items that fail are logged and skipped, and
// the returned count covers only items successfully handled.
func (r *Remover) RemoveFiles(paths []string, category Category) int {
	removed := 0

	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			// vanished between scan and delete, already clean
			log.Warn().Err(err).Str("path", path).Msg("path not found, skipping")
			continue
		}

		size := r.sizeOf(path, info)

		if !r.dryRun {
			if r.archiver != nil {
				if err := r.archiver.Archive(context.Background(), path, string(category)); err != nil {
					log.Error().Err(err).Str("path", path).Msg("archive failed, keeping path")
					continue
				}
			}
			if err := r.delete(path, info); err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to remove path")
				continue
			}
		}

		removed++
		r.stats.addRemoved(category, size)
		if r.dryRun {
			log.Info().Str("path", path).Int64("bytes", size).Msg("dry run, would remove")
		} else {
			log.Info().Str("path", path).Int64("bytes", size).Msg("removed")
		}
	}
	return removed
}

func (r *Remover) delete(path string, info os.FileInfo) error {
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// sizeOf returns the byte size of a file, or the recursive sum for a
// directory. Files vanishing mid-walk are skipped.
func (r *Remover) sizeOf(path string, info os.FileInfo) int64 {
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
