package lock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// FileLock is a pid lock file guarding cleanup runs on a single host.
// The file lives in the results root so every process cleaning the same
// tree contends on the same path.
type FileLock struct {
	path string
}

// NewFileLock returns a lock backed by the given file path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire attempts to create the lock file. A leftover lock whose holder
// pid is no longer running is broken and re-acquired.
func (l *FileLock) Acquire(_ context.Context) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(l.path)
				return false, fmt.Errorf("write lock file: %w", werr)
			}
			return true, nil
		}
		if !os.IsExist(err) {
			return false, fmt.Errorf("create lock file: %w", err)
		}
		if !l.holderAlive() {
			log.Warn().Str("path", l.path).Msg("breaking stale cleanup lock")
			_ = os.Remove(l.path)
			continue
		}
		return false, nil
	}
	return false, nil
}

// Release removes the lock file.
func (l *FileLock) Release(_ context.Context) {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to remove lock file")
	}
}

// holderAlive reports whether the pid recorded in the lock file still
// refers to a running process. Unreadable content counts as alive so we
// never break a lock we cannot understand.
func (l *FileLock) holderAlive() bool {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
