package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/runlog"
	"github.com/local/bookpipe/internal/segment"
)

const (
	segmentationLogName = "segmentation.jsonl"
	skippedLogName      = "skipped_books.txt"
)

// RunSegment plans and executes segmentation for every classified document
// whose evidence came from the metadata check. Documents already segmented
// (SUCCESS entry in the segmentation log) are skipped unless force is set;
// every skip is recorded in the skip log with its reason.
func (o *Orchestrator) RunSegment(ctx context.Context, force bool) error {
	records, err := runlog.LoadRecords(o.cfg.Corpus.ResultsFile)
	if err != nil {
		return fmt.Errorf("failed to load classification results: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no valid records in %s", o.cfg.Corpus.ResultsFile)
	}

	if err := os.MkdirAll(o.cfg.Corpus.LogsDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(o.cfg.Segment.OutputDir, 0o755); err != nil {
		return err
	}

	processed := make(map[string]struct{})
	if !force {
		processed, err = runlog.LoadSegmented(filepath.Join(o.cfg.Corpus.LogsDir, segmentationLogName))
		if err != nil {
			return err
		}
		log.Info().Int("processed", len(processed)).Msg("previous segmentation successes will be skipped")
	}

	segLog, err := runlog.OpenSeg(filepath.Join(o.cfg.Corpus.LogsDir, segmentationLogName))
	if err != nil {
		return err
	}
	defer segLog.Close()

	skipLog, err := runlog.NewSkipLog(filepath.Join(o.cfg.Corpus.LogsDir, skippedLogName))
	if err != nil {
		return err
	}
	defer skipLog.Close()

	var queue []string
	skipped := 0
	for _, rec := range records {
		if _, done := processed[rec.FilePath]; done {
			_ = skipLog.Skip(rec.FilePath, "Already processed")
			skipped++
			continue
		}
		analysisType := evidence.AnalysisFailed
		if rec.FinalEvidence != nil {
			analysisType = rec.FinalEvidence.AnalysisType
		}
		if analysisType != evidence.AnalysisMetadataCheck {
			_ = skipLog.Skip(rec.FilePath, fmt.Sprintf("analysis_type '%s'", analysisType))
			skipped++
			continue
		}
		queue = append(queue, rec.FilePath)
	}
	log.Info().Int("queue", len(queue)).Int("skipped", skipped).Msg("segmentation queue built")

	planner := segment.NewPlanner(o.tools, o.client, o.cfg.Gemini)
	executor := segment.NewExecutor(o.run, o.cfg.Segment, o.cfg.Tools.PdftkBin)

	o.forEachDocument(ctx, queue, func(ctx context.Context, path string) {
		o.segmentDocument(ctx, path, planner, executor, segLog)
	})
	return nil
}

func (o *Orchestrator) segmentDocument(ctx context.Context, path string, planner *segment.Planner, executor *segment.Executor, segLog *runlog.SegStore) {
	log.Info().Str("file", path).Msg("segmenting document")

	outcome, err := planner.Plan(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("file", path).Msg("segmentation planning failed")
		if lerr := segLog.Log(path, runlog.StatusFailure, err.Error(), 0, 0); lerr != nil {
			log.Error().Err(lerr).Str("file", path).Msg("failed to persist segmentation entry")
		}
		return
	}
	if outcome.Skipped {
		log.Info().Str("file", path).Msg("planner declined to segment - logged as deliberate skip")
		if lerr := segLog.Log(path, runlog.StatusSuccess, outcome.Message, 0, 0); lerr != nil {
			log.Error().Err(lerr).Str("file", path).Msg("failed to persist segmentation entry")
		}
		return
	}

	res := executor.Execute(ctx, path, outcome.Components)
	log.Info().
		Str("file", path).
		Str("status", res.Status).
		Int("executed", res.Executed).
		Int("total", res.Total).
		Msg("segmentation finished")
	if lerr := segLog.Log(path, res.Status, res.Message, res.Executed, res.Total); lerr != nil {
		log.Error().Err(lerr).Str("file", path).Msg("failed to persist segmentation entry")
	}
}
