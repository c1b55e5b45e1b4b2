package janitor

import (
	"fmt"
	"time"
)

// Category names one of the managed file classes.
type Category string

const (
	CategoryUploads   Category = "uploads"
	CategoryResults   Category = "results"
	CategoryTempFiles Category = "temp_files"
)

// Stats accumulates counters for one cleanup run. A run owns its Stats
// exclusively; once returned from CleanAll it is not mutated again.
type Stats struct {
	UploadsIdentified   int   `json:"uploads_identified"`
	UploadsRemoved      int   `json:"uploads_removed"`
	UploadsBytesFreed   int64 `json:"uploads_bytes_freed"`
	ResultsIdentified   int   `json:"results_identified"`
	ResultsRemoved      int   `json:"results_removed"`
	ResultsBytesFreed   int64 `json:"results_bytes_freed"`
	TempFilesIdentified int   `json:"temp_files_identified"`
	TempFilesRemoved    int   `json:"temp_files_removed"`
	TempFilesBytesFreed int64 `json:"temp_files_bytes_freed"`

	TotalIdentified    int    `json:"total_identified"`
	TotalRemoved       int    `json:"total_removed"`
	TotalBytesFreed    int64  `json:"total_bytes_freed"`
	HumanReadableFreed string `json:"human_readable_freed"`
	DryRun             bool   `json:"dry_run"`
	Timestamp          string `json:"timestamp"`
}

func (s *Stats) addIdentified(cat Category, n int) {
	switch cat {
	case CategoryUploads:
		s.UploadsIdentified += n
	case CategoryResults:
		s.ResultsIdentified += n
	case CategoryTempFiles:
		s.TempFilesIdentified += n
	}
}

func (s *Stats) addRemoved(cat Category, bytes int64) {
	switch cat {
	case CategoryUploads:
		s.UploadsRemoved++
		s.UploadsBytesFreed += bytes
	case CategoryResults:
		s.ResultsRemoved++
		s.ResultsBytesFreed += bytes
	case CategoryTempFiles:
		s.TempFilesRemoved++
		s.TempFilesBytesFreed += bytes
	}
}

// finalize rolls category counters into totals and stamps the run.
func (s *Stats) finalize(dryRun bool, now time.Time) {
	s.TotalIdentified = s.UploadsIdentified + s.ResultsIdentified + s.TempFilesIdentified
	s.TotalRemoved = s.UploadsRemoved + s.ResultsRemoved + s.TempFilesRemoved
	s.TotalBytesFreed = s.UploadsBytesFreed + s.ResultsBytesFreed + s.TempFilesBytesFreed
	s.HumanReadableFreed = FormatSize(s.TotalBytesFreed)
	s.DryRun = dryRun
	s.Timestamp = now.Format(time.RFC3339)
}

// FormatSize renders a byte count in binary units with two decimals,
// e.g. 1024 -> "1.00 KB".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}
