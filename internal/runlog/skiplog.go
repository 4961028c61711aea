package runlog

import (
	"fmt"
	"os"
	"time"
)

// SkipLog is the plain-text record of documents a segmentation run did not
// attempt and why. Rewritten from scratch each run.
type SkipLog struct {
	f *os.File
}

// NewSkipLog truncates the file and writes the header line.
func NewSkipLog(path string) (*SkipLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create skip log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "# Skipped Books Log - %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write skip log header: %w", err)
	}
	return &SkipLog{f: f}, nil
}

// Skip records one skipped document.
func (s *SkipLog) Skip(filePath, reason string) error {
	_, err := fmt.Fprintf(s.f, "%s | REASON: %s\n", filePath, reason)
	return err
}

func (s *SkipLog) Close() error { return s.f.Close() }
