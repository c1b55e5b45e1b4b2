package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the metadata file kept inside every result directory.
const FileName = "metadata.json"

// StatusSuccess marks a result whose processing completed without error.
const StatusSuccess = "success"

// Metadata describes one processed document result. The extraction side
// writes it when a result directory is created; the janitor only reads it.
type Metadata struct {
	DocumentID       string   `json:"document_id"`
	Status           string   `json:"status"`
	OriginalFilename string   `json:"original_filename"`
	// UploadName is the generated unique name the upload was stored under.
	// Older result directories predate this field; correlation then falls
	// back to the original filename.
	UploadName  string    `json:"upload_name,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewDocumentID returns a fresh id for a result directory.
func NewDocumentID() string { return uuid.NewString() }

// Read loads the metadata file from a result directory.
func Read(resultDir string) (Metadata, error) {
	var m Metadata
	b, err := os.ReadFile(filepath.Join(resultDir, FileName))
	if err != nil {
		return m, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse metadata: %w", err)
	}
	return m, nil
}

// Write stores the metadata file into a result directory, creating the
// directory if needed.
func Write(resultDir string, m Metadata) error {
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(resultDir, FileName), b, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
