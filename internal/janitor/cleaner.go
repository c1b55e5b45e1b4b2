package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/docjanitor/internal/metrics"
	"github.com/local/docjanitor/internal/retention"
)

// Locker guards a cleanup run against concurrent runs over the same
// roots. Implementations live in internal/lock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// Options configures a Cleaner.
type Options struct {
	Policy     *retention.Policy
	UploadDir  string
	ResultsDir string
	TempDir    string
	DryRun     bool
	Archiver   Archiver
	Lock       Locker
}

// Cleaner composes the scanner and remover over all three categories and
// aggregates one Stats report per run.
type Cleaner struct {
	opts    Options
	scanner *Scanner
	remover *Remover
	stats   *Stats
}

// NewCleaner builds a cleaner for one run. Create a fresh cleaner per run;
// the stats accumulator is not reusable.
func NewCleaner(opts Options) *Cleaner {
	if opts.Policy == nil {
		opts.Policy = retention.Default()
	}
	stats := &Stats{}
	return &Cleaner{
		opts:    opts,
		scanner: NewScanner(opts.Policy, opts.UploadDir, opts.ResultsDir, opts.TempDir, stats),
		remover: NewRemover(opts.DryRun, stats, opts.Archiver),
		stats:   stats,
	}
}

// CleanAll identifies and removes obsolete files in every category, then
// returns the stamped run report. When a locker is configured and the
// lock is held elsewhere the run is skipped and an empty report returned.
func (c *Cleaner) CleanAll() *Stats {
	mode := "real"
	if c.opts.DryRun {
		mode = "dry_run"
	}
	log.Info().Str("mode", mode).Msg("starting cleanup run")

	start := time.Now()
	ran := c.runLocked(func() {
		c.cleanCategory(CategoryUploads, c.scanner.IdentifyOldUploads)
		c.cleanCategory(CategoryResults, c.scanner.IdentifyOldResults)
		c.cleanCategory(CategoryTempFiles, c.scanner.IdentifyTempFiles)
	})
	if !ran {
		return c.stats
	}
	metrics.ObserveCleanupRun(mode, c.stats.TotalRemoved, c.stats.TotalBytesFreed, time.Since(start))

	log.Info().
		Int("identified", c.stats.TotalIdentified).
		Int("removed", c.stats.TotalRemoved).
		Str("freed", c.stats.HumanReadableFreed).
		Bool("dry_run", c.stats.DryRun).
		Msg("cleanup run complete")
	return c.stats
}

// CleanUploads runs identification and removal for uploads only.
func (c *Cleaner) CleanUploads() *Stats {
	c.runLocked(func() {
		c.cleanCategory(CategoryUploads, c.scanner.IdentifyOldUploads)
	})
	return c.stats
}

// CleanResults runs identification and removal for results only.
func (c *Cleaner) CleanResults() *Stats {
	c.runLocked(func() {
		c.cleanCategory(CategoryResults, c.scanner.IdentifyOldResults)
	})
	return c.stats
}

// CleanTempFiles runs identification and removal for temp files only.
func (c *Cleaner) CleanTempFiles() *Stats {
	c.runLocked(func() {
		c.cleanCategory(CategoryTempFiles, c.scanner.IdentifyTempFiles)
	})
	return c.stats
}

// runLocked executes clean under the configured run lock and finalizes
// the stats. Category-only runs contend on the same lock as full runs;
// two cleaners over the same roots must never delete concurrently.
// Returns false when the lock is held elsewhere and nothing ran.
func (c *Cleaner) runLocked(clean func()) bool {
	if c.opts.Lock != nil {
		ctx := context.Background()
		ok, err := c.opts.Lock.Acquire(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to acquire cleanup lock")
		}
		if !ok {
			log.Warn().Msg("cleanup lock held elsewhere, skipping run")
			c.stats.finalize(c.opts.DryRun, time.Now())
			return false
		}
		defer c.opts.Lock.Release(ctx)
	}
	clean()
	c.stats.finalize(c.opts.DryRun, time.Now())
	return true
}

func (c *Cleaner) cleanCategory(cat Category, identify func() []string) {
	candidates := identify()
	removed := c.remover.RemoveFiles(candidates, cat)
	metrics.ObserveCategory(string(cat), len(candidates), removed)
}
