package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const reportFileName = "install.report.json"

// BatchStatus represents the outcome of an install batch.
type BatchStatus string

const (
	StatusSucceeded BatchStatus = "succeeded"
	StatusFailed    BatchStatus = "failed"
)

// BatchReport records the most recent serviced install batch. It is an
// outcome record only; pending requests are never persisted.
type BatchReport struct {
	ID             string      `json:"id"`
	Tool           string      `json:"tool"`
	Classification string      `json:"classification"`
	Packages       []string    `json:"packages"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	Status         BatchStatus `json:"status"`
	Error          string      `json:"error,omitempty"`
}

// Path returns the full path to the report file inside dir.
func Path(dir string) string {
	return filepath.Join(dir, reportFileName)
}

// Read reads the batch report from disk.
// Returns nil if the report file does not exist.
func Read(dir string) (*BatchReport, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var r BatchReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}

	return &r, nil
}

// Write atomically writes the batch report to disk.
func Write(dir string, r *BatchReport) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	path := Path(dir)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	return nil
}

// Clear removes the report file.
func Clear(dir string) error {
	err := os.Remove(Path(dir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove report file: %w", err)
	}
	return nil
}
