package diskmon

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/local/docjanitor/internal/metrics"
)

// Level is an alert severity derived from free disk space.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "normal"
	}
}

// Thresholds are free-space percentage ceilings: a level applies when the
// observed free percentage falls below its threshold.
type Thresholds struct {
	Warning   float64
	Critical  float64
	Emergency float64
}

// DefaultThresholds returns the stock alert thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 20, Critical: 10, Emergency: 5}
}

// Reading is a point-in-time disk usage snapshot for one path. Errors are
// carried inline so CheckAllPaths always yields one entry per path.
type Reading struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	FreePercent float64 `json:"free_percent"`
	AlertLevel  string  `json:"alert_level"`
	Err         string  `json:"error,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

// LargeFile describes one entry of the largest-files diagnostic.
type LargeFile struct {
	Path string `json:"path"`
	Size string `json:"size"`
	Name string `json:"name"`
}

// Report is the outcome of one monitoring pass.
type Report struct {
	Readings     map[string]Reading `json:"disk_info"`
	HasAlert     bool               `json:"has_alert"`
	HighestAlert string             `json:"highest_alert"`
	EmailSent    bool               `json:"email_sent"`
	Timestamp    string             `json:"timestamp"`
}

// Mailer delivers a plain-text alert message.
type Mailer interface {
	Send(subject, body string) error
}

// Monitor samples free space for the managed paths and classifies alert
// levels. It runs independently of the cleanup orchestrator but watches
// the same roots.
type Monitor struct {
	thresholds Thresholds
	uploadDir  string
	resultsDir string
	mailer     Mailer
	usage      func(path string) (*disk.UsageStat, error)
}

// New builds a monitor. mailer may be nil, which disables alert email.
func New(thresholds Thresholds, uploadDir, resultsDir string, mailer Mailer) *Monitor {
	return &Monitor{
		thresholds: thresholds,
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		mailer:     mailer,
		usage:      disk.Usage,
	}
}

// Classify maps a free-space percentage to an alert level. The table is
// scanned from least to most severe and the last matching level wins, so
// equal thresholds resolve toward higher severity.
func (m *Monitor) Classify(freePercent float64) Level {
	level := LevelNormal
	checks := []struct {
		level     Level
		threshold float64
	}{
		{LevelWarning, m.thresholds.Warning},
		{LevelCritical, m.thresholds.Critical},
		{LevelEmergency, m.thresholds.Emergency},
	}
	for _, c := range checks {
		if freePercent < c.threshold {
			level = c.level
		}
	}
	return level
}

// CheckDiskSpace samples the volume containing path.
func (m *Monitor) CheckDiskSpace(path string) Reading {
	now := time.Now().Format(time.RFC3339)

	usage, err := m.usage(path)
	if err != nil || usage.Total == 0 {
		if err == nil {
			err = fmt.Errorf("zero-sized volume at %s", path)
		}
		log.Error().Err(err).Str("path", path).Msg("failed to read disk usage")
		return Reading{Path: path, Err: err.Error(), Timestamp: now}
	}

	freePercent := float64(usage.Free) / float64(usage.Total) * 100
	level := m.Classify(freePercent)
	metrics.SetDiskReading(path, freePercent, int(level))

	const gb = 1 << 30
	return Reading{
		Path:        path,
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		TotalGB:     round2(float64(usage.Total) / gb),
		UsedGB:      round2(float64(usage.Used) / gb),
		FreeGB:      round2(float64(usage.Free) / gb),
		FreePercent: round2(freePercent),
		AlertLevel:  level.String(),
		Timestamp:   now,
	}
}

// CheckAllPaths samples every monitored path: the uploads root, the
// results root and the filesystem root.
func (m *Monitor) CheckAllPaths() map[string]Reading {
	paths := map[string]string{
		"uploads": m.uploadDir,
		"results": m.resultsDir,
		"root":    "/",
	}
	readings := make(map[string]Reading, len(paths))
	for name, path := range paths {
		readings[name] = m.CheckDiskSpace(path)
	}
	return readings
}

// GetLargestFiles lists the biggest files under path, best effort. It
// shells out to find/du/sort and returns an empty list on any failure;
// this is diagnostic only and never load-bearing.
func (m *Monitor) GetLargestFiles(path string, count int) []LargeFile {
	cmd := exec.Command("sh", "-c",
		fmt.Sprintf("find %q -type f -exec du -h {} + 2>/dev/null | sort -rh | head -%d", path, count))
	out, err := cmd.Output()
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("largest-files listing unavailable")
		return nil
	}

	var files []LargeFile
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		files = append(files, LargeFile{
			Path: parts[1],
			Size: parts[0],
			Name: filepath.Base(parts[1]),
		})
	}
	return files
}

// SendAlertEmail composes and delivers the alert summary. It returns
// false when email is disabled, when no reading is above normal, or when
// delivery fails; transport errors are logged, never raised.
func (m *Monitor) SendAlertEmail(readings map[string]Reading) bool {
	if m.mailer == nil {
		log.Info().Msg("alert email disabled")
		metrics.IncAlertEmail("skipped")
		return false
	}

	hasAlert := false
	for _, r := range readings {
		if r.Err == "" && r.AlertLevel != LevelNormal.String() {
			hasAlert = true
			break
		}
	}
	if !hasAlert {
		log.Debug().Msg("no alert to send")
		return false
	}

	subject := fmt.Sprintf("[docjanitor] Disk space alert - %s", time.Now().Format("2006-01-02 15:04"))
	body := m.composeAlertBody(readings)

	if err := m.mailer.Send(subject, body); err != nil {
		log.Error().Err(err).Msg("failed to send alert email")
		metrics.IncAlertEmail("failed")
		return false
	}
	log.Info().Msg("alert email sent")
	metrics.IncAlertEmail("sent")
	return true
}

func (m *Monitor) composeAlertBody(readings map[string]Reading) string {
	var b strings.Builder
	b.WriteString("Disk space alert on the document processing host\n\n")

	for _, name := range []string{"uploads", "results", "root"} {
		r, ok := readings[name]
		if !ok {
			continue
		}
		if r.Err != "" {
			fmt.Fprintf(&b, "%s: failed to read disk usage: %s\n", strings.ToUpper(name), r.Err)
			continue
		}
		status := "OK"
		if r.AlertLevel != LevelNormal.String() {
			status = strings.ToUpper(r.AlertLevel)
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", strings.ToUpper(name), r.Path, status)
		fmt.Fprintf(&b, "  Free: %.2f GB (%.2f%%)\n", r.FreeGB, r.FreePercent)
		fmt.Fprintf(&b, "  Total: %.2f GB\n", r.TotalGB)
		fmt.Fprintf(&b, "  Used: %.2f GB\n\n", r.UsedGB)
	}

	b.WriteString("Largest files in managed directories:\n\n")
	for _, name := range []string{"uploads", "results"} {
		r, ok := readings[name]
		if !ok || r.Err != "" {
			continue
		}
		files := m.GetLargestFiles(r.Path, 5)
		if len(files) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Largest files in %s (%s):\n", name, r.Path)
		for _, f := range files {
			fmt.Fprintf(&b, "  %s\t%s\n", f.Size, f.Path)
		}
		b.WriteString("\n")
	}

	b.WriteString("Suggested remediation:\n")
	b.WriteString("1. Run the cleanup tool: docjanitor-cleanup\n")
	b.WriteString("2. Review and remove unneeded large files\n")
	b.WriteString("3. Consider provisioning more disk space\n")
	return b.String()
}

// CheckAndAlert samples all paths, derives the highest alert level and
// sends the alert email when anything is above normal.
func (m *Monitor) CheckAndAlert() Report {
	readings := m.CheckAllPaths()

	hasAlert := false
	highest := LevelNormal
	for _, r := range readings {
		if r.Err != "" || r.AlertLevel == LevelNormal.String() {
			continue
		}
		hasAlert = true
		if lvl := parseLevel(r.AlertLevel); lvl > highest {
			highest = lvl
		}
	}

	emailSent := false
	if hasAlert {
		msg := fmt.Sprintf("disk space alert: %s", strings.ToUpper(highest.String()))
		switch highest {
		case LevelEmergency, LevelCritical:
			log.Error().Str("level", highest.String()).Msg(msg)
		default:
			log.Warn().Str("level", highest.String()).Msg(msg)
		}
		emailSent = m.SendAlertEmail(readings)
	} else {
		log.Info().Msg("disk space OK")
	}

	return Report{
		Readings:     readings,
		HasAlert:     hasAlert,
		HighestAlert: highest.String(),
		EmailSent:    emailSent,
		Timestamp:    time.Now().Format(time.RFC3339),
	}
}

func parseLevel(s string) Level {
	switch s {
	case "warning":
		return LevelWarning
	case "critical":
		return LevelCritical
	case "emergency":
		return LevelEmergency
	default:
		return LevelNormal
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
