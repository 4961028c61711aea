package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Segmentation attempt statuses.
const (
	StatusSuccess        = "SUCCESS"
	StatusPartialFailure = "PARTIAL_FAILURE"
	StatusFailure        = "FAILURE"
)

// SegEntry is one segmentation attempt outcome.
type SegEntry struct {
	Timestamp        string `json:"timestamp"`
	FilePath         string `json:"file_path"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	CommandsExecuted int    `json:"commands_executed"`
	CommandsTotal    int    `json:"commands_total"`
}

// SegStore appends segmentation attempt entries to a JSONL file.
type SegStore struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

// OpenSeg opens the segmentation log for appending, creating it when absent.
func OpenSeg(path string) (*SegStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segmentation log: %w", err)
	}
	return &SegStore{f: f, now: time.Now}, nil
}

// Log appends one attempt entry, stamped with the current UTC time.
func (s *SegStore) Log(filePath, status, message string, executed, total int) error {
	entry := SegEntry{
		Timestamp:        s.now().UTC().Format(time.RFC3339),
		FilePath:         filePath,
		Status:           status,
		Message:          message,
		CommandsExecuted: executed,
		CommandsTotal:    total,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode segmentation entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append segmentation entry: %w", err)
	}
	return s.f.Sync()
}

func (s *SegStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// LoadSegmented returns the set of file paths with a SUCCESS entry in the
// segmentation log. A missing log is an empty set; malformed lines are
// skipped with a warning.
func LoadSegmented(path string) (map[string]struct{}, error) {
	processed := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, nil
		}
		return nil, fmt.Errorf("failed to read segmentation log: %w", err)
	}

	for _, line := range splitRecords(string(data)) {
		var entry SegEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Warn().Err(err).Str("log", path).Msg("skipping malformed segmentation log line")
			continue
		}
		if entry.Status == StatusSuccess && entry.FilePath != "" {
			processed[entry.FilePath] = struct{}{}
		}
	}
	return processed, nil
}
