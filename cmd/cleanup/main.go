package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/docjanitor/internal/archive"
	cfgpkg "github.com/local/docjanitor/internal/config"
	"github.com/local/docjanitor/internal/janitor"
	"github.com/local/docjanitor/internal/lock"
	logpkg "github.com/local/docjanitor/internal/logger"
	"github.com/local/docjanitor/internal/metrics"
	"github.com/local/docjanitor/internal/retention"
)

var (
	flagDryRun       bool
	flagVerbose      bool
	flagOutput       string
	flagUploadsAge   int
	flagResultsAge   int
	flagTempFilesAge int
	flagUploadsOnly  bool
	flagResultsOnly  bool
	flagTempOnly     bool
	flagNoLock       bool
)

func main() {
	root := &cobra.Command{
		Use:   "docjanitor-cleanup",
		Short: "Remove obsolete uploads, results and temp files",
		Long: "Applies the retention policy to the managed uploads and results " +
			"directories and the system temp directory, removing whatever has " +
			"aged out. Use --dry-run to preview the impact without deleting.",
		SilenceUsage: true,
		Run:          run,
	}

	root.Flags().BoolVar(&flagDryRun, "dry-run", false, "simulate the cleanup without removing anything")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringVarP(&flagOutput, "output", "o", "", "write the run statistics to a JSON file")
	root.Flags().IntVar(&flagUploadsAge, "uploads-max-age", 0, "max age in days for upload files")
	root.Flags().IntVar(&flagResultsAge, "results-max-age", 0, "max age in days for result directories")
	root.Flags().IntVar(&flagTempFilesAge, "temp-files-max-age", 0, "max age in hours for temp files")
	root.Flags().BoolVar(&flagUploadsOnly, "uploads-only", false, "clean uploads only")
	root.Flags().BoolVar(&flagResultsOnly, "results-only", false, "clean results only")
	root.Flags().BoolVar(&flagTempOnly, "temp-files-only", false, "clean temp files only")
	root.Flags().BoolVar(&flagNoLock, "no-lock", false, "skip the cross-process run lock")

	// Partial failures surface through counts and logs; automation relying
	// on this tool must never be blocked by a non-zero exit.
	_ = root.Execute()
	os.Exit(0)
}

func run(cmd *cobra.Command, _ []string) {
	cfg := cfgpkg.FromEnv()

	level := "info"
	if flagVerbose {
		level = "debug"
	}
	_ = logpkg.Init(logpkg.Options{Level: level, Pretty: true})
	defer logpkg.Close()

	metrics.Init()

	policy := buildPolicy(cmd, cfg)

	var archiver janitor.Archiver
	if a, err := archive.NewS3Archiver(cmd.Context(), cfg.Archive); err != nil {
		log.Error().Err(err).Msg("S3 archiver unavailable, continuing without archiving")
	} else if a != nil {
		archiver = a
	}

	var locker janitor.Locker
	if !flagNoLock {
		if cfg.Lock.RedisURL != "" {
			lease, err := lock.NewRedisLease(cfg.Lock.RedisURL, cfg.Lock.TTL)
			if err != nil {
				log.Error().Err(err).Msg("redis lease unavailable, falling back to lock file")
			} else {
				defer lease.Close()
				locker = lease
			}
		}
		if locker == nil {
			locker = lock.NewFileLock(filepath.Join(cfg.Paths.ResultsDir, ".cleanup.lock"))
		}
	}

	cleaner := janitor.NewCleaner(janitor.Options{
		Policy:     policy,
		UploadDir:  cfg.Paths.UploadDir,
		ResultsDir: cfg.Paths.ResultsDir,
		TempDir:    cfg.Paths.TempDir,
		DryRun:     flagDryRun,
		Archiver:   archiver,
		Lock:       locker,
	})

	var stats *janitor.Stats
	switch {
	case flagUploadsOnly:
		stats = cleaner.CleanUploads()
	case flagResultsOnly:
		stats = cleaner.CleanResults()
	case flagTempOnly:
		stats = cleaner.CleanTempFiles()
	default:
		stats = cleaner.CleanAll()
	}

	printSummary(stats)

	if flagOutput != "" {
		if err := writeJSON(flagOutput, stats); err != nil {
			log.Error().Err(err).Str("path", flagOutput).Msg("failed to write stats file")
		}
	}
}

func buildPolicy(cmd *cobra.Command, cfg cfgpkg.Config) *retention.Policy {
	ret := cfg.Retention
	if cmd.Flags().Changed("uploads-max-age") && flagUploadsAge >= 0 {
		ret.UploadMaxAgeDays = &flagUploadsAge
	}
	if cmd.Flags().Changed("results-max-age") && flagResultsAge >= 0 {
		ret.ResultMaxAgeDays = &flagResultsAge
	}
	if cmd.Flags().Changed("temp-files-max-age") && flagTempFilesAge >= 0 {
		ret.TempFileMaxAgeHours = &flagTempFilesAge
	}
	cfg.Retention = ret
	return cfg.Policy()
}

func printSummary(s *janitor.Stats) {
	mode := "real"
	if s.DryRun {
		mode = "dry run"
	}
	fmt.Printf("Cleanup finished at %s (%s mode)\n", s.Timestamp, mode)
	fmt.Printf("  uploads:    %d identified, %d removed, %s freed\n",
		s.UploadsIdentified, s.UploadsRemoved, janitor.FormatSize(s.UploadsBytesFreed))
	fmt.Printf("  results:    %d identified, %d removed, %s freed\n",
		s.ResultsIdentified, s.ResultsRemoved, janitor.FormatSize(s.ResultsBytesFreed))
	fmt.Printf("  temp files: %d identified, %d removed, %s freed\n",
		s.TempFilesIdentified, s.TempFilesRemoved, janitor.FormatSize(s.TempFilesBytesFreed))
	fmt.Printf("  total:      %d identified, %d removed, %s freed\n",
		s.TotalIdentified, s.TotalRemoved, s.HumanReadableFreed)
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
