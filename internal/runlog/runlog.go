// Package runlog persists pipeline outcomes: the append-only classification
// run log, the segmentation attempt log and the plain-text skip log.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/classify"
	"github.com/local/bookpipe/internal/evidence"
)

// Record is one terminal classification outcome for a document. Written once,
// never mutated.
type Record struct {
	FilePath             string           `json:"file_path"`
	ClassificationResult classify.Result  `json:"classification_result"`
	FinalEvidence        *evidence.Record `json:"final_evidence"`
}

// Store appends records to a line-delimited JSON file. A single mutex-held
// append+sync per record keeps concurrent writers from interleaving lines.
type Store struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens the run log for appending, creating it when absent. With
// truncate, prior content is discarded first.
func Open(path string, truncate bool) (*Store, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return &Store{f: f}, nil
}

// Append writes one record as a single JSON line and flushes it to disk
// before returning.
func (s *Store) Append(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append run record: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("failed to flush run log: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// legacyRecord covers the older log layout where the document path lived
// inside the evidence payload.
type legacyRecord struct {
	FilePath      string `json:"file_path"`
	FinalEvidence struct {
		File string `json:"file"`
	} `json:"final_evidence"`
}

// LoadProcessed returns the set of file paths with a record in the run log.
// A missing log is an empty set. Malformed lines are skipped with a warning,
// never fatal; records concatenated without newlines are recovered at the
// `}{` boundary.
func LoadProcessed(path string) (map[string]struct{}, error) {
	processed := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, nil
		}
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	for _, line := range splitRecords(string(data)) {
		var rec legacyRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Str("log", path).Msg("skipping malformed run log line")
			continue
		}
		switch {
		case rec.FilePath != "":
			processed[rec.FilePath] = struct{}{}
		case rec.FinalEvidence.File != "":
			processed[rec.FinalEvidence.File] = struct{}{}
		default:
			log.Warn().Str("log", path).Msg("run log line carries no file path, skipping")
		}
	}
	return processed, nil
}

// LoadRecords parses all well-formed records, skipping malformed lines with a
// warning.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	var records []Record
	for _, line := range splitRecords(string(data)) {
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Str("log", path).Msg("skipping malformed run log line")
			continue
		}
		if rec.FilePath == "" {
			// Legacy layout: path inside the evidence payload.
			var legacy legacyRecord
			if json.Unmarshal([]byte(line), &legacy) == nil {
				rec.FilePath = legacy.FinalEvidence.File
			}
		}
		if rec.FilePath == "" {
			log.Warn().Str("log", path).Msg("run log line carries no file path, skipping")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// splitRecords splits line-delimited JSON content into one string per record,
// recovering records that were concatenated without a newline.
func splitRecords(content string) []string {
	content = strings.ReplaceAll(content, "}{", "}\n{")
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
