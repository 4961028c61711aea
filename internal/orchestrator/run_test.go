package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/local/bookpipe/internal/config"
	"github.com/local/bookpipe/internal/dispatcher"
	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/filetype"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/runlog"
)

type countingClient struct {
	calls    int
	response string
}

func (c *countingClient) GetResponse(ctx context.Context, prompt string, task dispatcher.TaskType, preferredModel string) (string, error) {
	c.calls++
	return c.response, nil
}

// writeCorpusPDF writes a minimal file whose magic bytes pass the PDF gate.
func writeCorpusPDF(t *testing.T, path string) {
	t.Helper()
	content := "%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func classifyTestConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	dir := t.TempDir()
	books := filepath.Join(dir, "BOOKS")
	if err := os.MkdirAll(books, 0o755); err != nil {
		t.Fatal(err)
	}
	var cfg cfgpkg.Config
	cfg.Corpus = cfgpkg.CorpusConfig{
		BooksDir:    books,
		ResultsFile: filepath.Join(dir, "book_classifications.jsonl"),
		LogsDir:     filepath.Join(dir, "logs"),
		Workers:     1,
	}
	cfg.Layout.MaxPages = 5
	cfg.Segment = cfgpkg.SegmentConfig{
		OutputDir:      filepath.Join(dir, "segmented_output"),
		CommandTimeout: time.Second,
	}
	cfg.Gemini.SegmentModels = []string{"model-strong"}
	return cfg
}

func metadataExtractors() Extractors {
	return Extractors{
		EnsureDecrypted: func(ctx context.Context, path string) bool { return false },
		ReadEmbedded: func(path string) []evidence.OutlineEntry {
			return []evidence.OutlineEntry{{Title: "Chapter 1", Page: 5, Level: 0}}
		},
		DumpData:      func(ctx context.Context, path string) (string, error) { return "", errors.New("unavailable") },
		AnalyzeLayout: nil, // metadata suffices, the scan must never run
	}
}

func TestRunClassifySecondRunAppendsNothing(t *testing.T) {
	cfg := classifyTestConfig(t)
	writeCorpusPDF(t, filepath.Join(cfg.Corpus.BooksDir, "a.pdf"))
	writeCorpusPDF(t, filepath.Join(cfg.Corpus.BooksDir, "b.pdf"))

	client := &countingClient{response: `{"classification": "Level 2", "justification": "clear hierarchy"}`}
	o := &Orchestrator{cfg: cfg, client: client, detect: filetype.New(), ex: metadataExtractors()}

	if err := o.RunClassify(context.Background(), false); err != nil {
		t.Fatalf("RunClassify() error = %v", err)
	}
	records, err := runlog.LoadRecords(cfg.Corpus.ResultsFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records after first run = %d, want 2", len(records))
	}
	if client.calls != 2 {
		t.Fatalf("client calls after first run = %d, want 2", client.calls)
	}

	// Second run without force: every path is already in the results file.
	if err := o.RunClassify(context.Background(), false); err != nil {
		t.Fatalf("RunClassify() error = %v", err)
	}
	records, err = runlog.LoadRecords(cfg.Corpus.ResultsFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records after second run = %d, want 2 (no new records)", len(records))
	}
	if client.calls != 2 {
		t.Fatalf("client calls after second run = %d, want 2 (nothing reprocessed)", client.calls)
	}
}

func TestRunClassifyForceReprocesses(t *testing.T) {
	cfg := classifyTestConfig(t)
	writeCorpusPDF(t, filepath.Join(cfg.Corpus.BooksDir, "a.pdf"))

	client := &countingClient{response: `{"classification": "Level 1", "justification": "flat"}`}
	o := &Orchestrator{cfg: cfg, client: client, detect: filetype.New(), ex: metadataExtractors()}

	if err := o.RunClassify(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if err := o.RunClassify(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	records, err := runlog.LoadRecords(cfg.Corpus.ResultsFile)
	if err != nil {
		t.Fatal(err)
	}
	// Force truncates the prior results, so one record, not two.
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if client.calls != 2 {
		t.Fatalf("client calls = %d, want 2", client.calls)
	}
}

const segDump = `InfoBegin
NumberOfPages: 30
BookmarkBegin
BookmarkTitle: Chapter 1
BookmarkLevel: 1
BookmarkPageNumber: 5
`

type segToolRunner struct{}

func (segToolRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	return []byte(segDump), nil, nil
}

func seedResults(t *testing.T, path string, records ...*runlog.Record) {
	t.Helper()
	store, err := runlog.Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	for _, rec := range records {
		if err := store.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunSegmentSkipsPriorSuccesses(t *testing.T) {
	cfg := classifyTestConfig(t)
	cfg.Tools = cfgpkg.ToolsConfig{
		PdftkBin: "pdftk", GsBin: "gs", QpdfBin: "qpdf",
		DumpTimeout: time.Second, Retries: 1, RetryCap: time.Millisecond,
	}

	eligible := filepath.Join(cfg.Corpus.BooksDir, "a.pdf")
	ineligible := filepath.Join(cfg.Corpus.BooksDir, "b.pdf")
	seedResults(t, cfg.Corpus.ResultsFile,
		&runlog.Record{FilePath: eligible, FinalEvidence: &evidence.Record{AnalysisType: evidence.AnalysisMetadataCheck}},
		&runlog.Record{FilePath: ineligible, FinalEvidence: &evidence.Record{AnalysisType: evidence.AnalysisLayoutAnalysis}},
	)

	// An empty plan twice over is the deliberate-skip outcome, logged SUCCESS.
	client := &countingClient{response: `[]`}
	run := segToolRunner{}
	o := &Orchestrator{
		cfg:    cfg,
		tools:  pdftool.NewTools(run, cfg.Tools),
		run:    run,
		client: client,
		detect: filetype.New(),
	}

	if err := o.RunSegment(context.Background(), false); err != nil {
		t.Fatalf("RunSegment() error = %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("client calls after first run = %d, want 2 (empty plan retried once)", client.calls)
	}
	skipData, err := os.ReadFile(filepath.Join(cfg.Corpus.LogsDir, "skipped_books.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(skipData), ineligible+" | REASON: analysis_type 'layout_analysis'") {
		t.Fatalf("skip log = %q", skipData)
	}

	// Second run: the SUCCESS entry keeps the eligible book out of the queue.
	if err := o.RunSegment(context.Background(), false); err != nil {
		t.Fatalf("RunSegment() error = %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("client calls after second run = %d, want 2 (nothing replanned)", client.calls)
	}
	skipData, err = os.ReadFile(filepath.Join(cfg.Corpus.LogsDir, "skipped_books.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(skipData), eligible+" | REASON: Already processed") {
		t.Fatalf("skip log = %q", skipData)
	}

	segmented, err := runlog.LoadSegmented(filepath.Join(cfg.Corpus.LogsDir, "segmentation.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := segmented[eligible]; !ok || len(segmented) != 1 {
		t.Fatalf("segmented = %v, want only the eligible book", segmented)
	}
}
