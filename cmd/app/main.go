package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/docjanitor/internal/archive"
	cfgpkg "github.com/local/docjanitor/internal/config"
	"github.com/local/docjanitor/internal/diskmon"
	"github.com/local/docjanitor/internal/janitor"
	"github.com/local/docjanitor/internal/lock"
	logpkg "github.com/local/docjanitor/internal/logger"
	"github.com/local/docjanitor/internal/mailer"
	"github.com/local/docjanitor/internal/metrics"
	"github.com/local/docjanitor/internal/scheduler"
)

func main() {
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create managed directory")
		}
	}

	policy := cfg.Policy()

	// Archiver (optional)
	archiver, err := archive.NewS3Archiver(context.Background(), cfg.Archive)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init S3 archiver")
	}

	// Run lock: redis lease when configured, lock file otherwise
	var locker janitor.Locker
	if cfg.Lock.RedisURL != "" {
		lease, err := lock.NewRedisLease(cfg.Lock.RedisURL, cfg.Lock.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis for cleanup lease")
		}
		defer lease.Close()
		locker = lease
	} else {
		locker = lock.NewFileLock(filepath.Join(cfg.Paths.ResultsDir, ".cleanup.lock"))
	}

	var alertMailer diskmon.Mailer
	if m := mailer.New(cfg.Mail); m != nil {
		alertMailer = m
	}
	monitor := diskmon.New(diskmon.Thresholds{
		Warning:   cfg.Disk.WarningPercent,
		Critical:  cfg.Disk.CriticalPercent,
		Emergency: cfg.Disk.EmergencyPercent,
	}, cfg.Paths.UploadDir, cfg.Paths.ResultsDir, alertMailer)

	sched := scheduler.New()
	err = sched.Add(cfg.Schedule.Cleanup, "cleanup", func() {
		var a janitor.Archiver
		if archiver != nil {
			a = archiver
		}
		cleaner := janitor.NewCleaner(janitor.Options{
			Policy:     policy,
			UploadDir:  cfg.Paths.UploadDir,
			ResultsDir: cfg.Paths.ResultsDir,
			TempDir:    cfg.Paths.TempDir,
			Archiver:   a,
			Lock:       locker,
		})
		cleaner.CleanAll()
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cleanup schedule")
	}
	err = sched.Add(cfg.Schedule.DiskCheck, "disk_check", func() {
		monitor.CheckAndAlert()
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid disk check schedule")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("shutdown complete")
}
