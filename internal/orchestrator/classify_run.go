// Package orchestrator drives the corpus pipelines: per-document evidence
// collection, remote classification, and segmentation plan execution.
package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/classify"
	cfgpkg "github.com/local/bookpipe/internal/config"
	"github.com/local/bookpipe/internal/dispatcher"
	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/filetype"
	"github.com/local/bookpipe/internal/layout"
	mpkg "github.com/local/bookpipe/internal/metrics"
	"github.com/local/bookpipe/internal/outline"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/runlog"
)

// inferenceClient is the slice of the rotation client the pipelines use.
type inferenceClient interface {
	GetResponse(ctx context.Context, prompt string, task dispatcher.TaskType, preferredModel string) (string, error)
}

// Orchestrator wires the evidence extractors, the inference client and the
// log stores into the two corpus pipelines.
type Orchestrator struct {
	cfg    cfgpkg.Config
	tools  *pdftool.Tools
	run    pdftool.Runner
	client inferenceClient
	detect *filetype.Detector
	ex     Extractors
}

func New(cfg cfgpkg.Config, tools *pdftool.Tools, run pdftool.Runner, client inferenceClient) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		tools:  tools,
		run:    run,
		client: client,
		detect: filetype.New(),
		ex: Extractors{
			EnsureDecrypted: tools.EnsureDecrypted,
			ReadEmbedded:    outline.ReadEmbedded,
			DumpData:        tools.DumpData,
			AnalyzeLayout:   layout.Analyze,
		},
	}
}

// RunClassify processes every PDF under the books directory, appending one
// terminal record per document to the results file. Without force, documents
// already present in the results file are skipped.
func (o *Orchestrator) RunClassify(ctx context.Context, force bool) error {
	files, err := findPDFs(o.cfg.Corpus.BooksDir)
	if err != nil {
		return err
	}
	log.Info().Int("files", len(files)).Str("dir", o.cfg.Corpus.BooksDir).Msg("corpus scan complete")

	processed := make(map[string]struct{})
	if !force {
		processed, err = runlog.LoadProcessed(o.cfg.Corpus.ResultsFile)
		if err != nil {
			return err
		}
		log.Info().Int("processed", len(processed)).Msg("previously processed documents will be skipped")
	}

	store, err := runlog.Open(o.cfg.Corpus.ResultsFile, force)
	if err != nil {
		return err
	}
	defer store.Close()

	queue := make([]string, 0, len(files))
	for _, f := range files {
		if _, done := processed[f]; done {
			continue
		}
		queue = append(queue, f)
	}
	log.Info().Int("queue", len(queue)).Msg("documents to classify")

	o.forEachDocument(ctx, queue, func(ctx context.Context, path string) {
		o.classifyDocument(ctx, path, store)
	})
	return nil
}

// forEachDocument runs fn over the queue with the configured worker count.
// Single worker means strict path order; more workers mean completion order
// in the log.
func (o *Orchestrator) forEachDocument(ctx context.Context, queue []string, fn func(ctx context.Context, path string)) {
	workers := o.cfg.Corpus.Workers
	if workers <= 1 {
		for _, path := range queue {
			if ctx.Err() != nil {
				return
			}
			fn(ctx, path)
		}
		return
	}

	ch := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range ch {
				fn(ctx, path)
			}
		}()
	}
	for _, path := range queue {
		if ctx.Err() != nil {
			break
		}
		ch <- path
	}
	close(ch)
	wg.Wait()
}

func (o *Orchestrator) classifyDocument(ctx context.Context, path string, store *runlog.Store) {
	log.Info().Str("file", path).Msg("processing document")

	if warnMB := o.cfg.Corpus.SizeWarnMB; warnMB > 0 {
		if info, err := os.Stat(path); err == nil {
			if sizeMB := float64(info.Size()) / (1024 * 1024); sizeMB > float64(warnMB) {
				log.Warn().Str("file", path).Float64("size_mb", sizeMB).Msg("large file - external tools may time out")
			}
		}
	}
	if !o.detect.IsPDF(path) {
		log.Warn().Str("file", path).Msg("magic bytes are not a PDF - skipping")
		return
	}

	rec := CollectEvidence(ctx, path, o.ex, o.cfg.Layout.MaxPages)
	mpkg.IncDocument(string(rec.AnalysisType))

	result := o.classifyEvidence(ctx, path, rec)
	mpkg.IncClassification(result.Classification)
	log.Info().
		Str("file", path).
		Str("level", result.Classification).
		Str("justification", result.Justification).
		Msg("classification result")

	if err := store.Append(&runlog.Record{FilePath: path, ClassificationResult: result, FinalEvidence: rec}); err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to persist run record")
	}
}

// classifyEvidence obtains the classification for one evidence record. Every
// failure mode collapses into the Error sentinel result so the document still
// gets its one terminal record.
func (o *Orchestrator) classifyEvidence(ctx context.Context, path string, rec *evidence.Record) classify.Result {
	prompt, err := classify.BuildPrompt(path, rec)
	if err != nil {
		return classify.ErrorResult(fmt.Sprintf("failed to build prompt: %v", err), "")
	}

	raw, err := o.client.GetResponse(ctx, prompt, dispatcher.TaskClassification, o.strongestClassifyModel())
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("remote classification failed")
		return classify.ErrorResult(fmt.Sprintf("failed to get response: %v", err), "")
	}

	result, err := classify.ParseResponse(raw)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("classification response unusable")
		return classify.ErrorResult(err.Error(), raw)
	}
	return result
}

// strongestClassifyModel leads with the strongest model; the task list is
// ordered cheapest-first and rotation may still degrade to it.
func (o *Orchestrator) strongestClassifyModel() string {
	models := o.cfg.Gemini.ClassifyModels
	if len(models) == 0 {
		return ""
	}
	return models[len(models)-1]
}

// findPDFs recursively collects .pdf files under dir in sorted path order.
func findPDFs(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan books directory %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
