package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/bookpipe/internal/config"
	mpkg "github.com/local/bookpipe/internal/metrics"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/plan"
	"github.com/local/bookpipe/internal/runlog"
)

var unsafeNameRegex = regexp.MustCompile(`[<>:"/\\|?*']`)

// SanitizeName replaces characters invalid in file and directory names.
func SanitizeName(name string) string {
	return unsafeNameRegex.ReplaceAllString(name, "_")
}

// Result is the executor's aggregate outcome for one document.
type Result struct {
	Executed int
	Total    int
	Status   string
	Message  string
}

// Executor renders and runs the external split commands for a validated
// plan, verifying every produced file and falling back to in-process page
// slicing when the external tool fails.
type Executor struct {
	run pdftool.Runner
	cfg cfgpkg.SegmentConfig

	pdftkBin string

	// outputPages verifies a produced file; extractPages is the in-process
	// fallback slicer. Both overridable in tests.
	outputPages  func(path string) (int, error)
	extractPages func(in, out string, start, end int) error
}

func NewExecutor(run pdftool.Runner, cfg cfgpkg.SegmentConfig, pdftkBin string) *Executor {
	return &Executor{
		run:          run,
		cfg:          cfg,
		pdftkBin:     pdftkBin,
		outputPages:  api.PageCountFile,
		extractPages: trimFilePages,
	}
}

// Execute runs every component of the plan against the source document. At
// least half the components must succeed for a SUCCESS status; anything less
// is PARTIAL_FAILURE.
func (e *Executor) Execute(ctx context.Context, path string, components []plan.Component) Result {
	outDir, err := e.outputDir(path)
	if err != nil {
		return Result{Total: len(components), Status: runlog.StatusFailure, Message: fmt.Sprintf("Execution failed: %v", err)}
	}
	log.Info().Str("file", path).Str("output_dir", outDir).Int("components", len(components)).Msg("executing segmentation plan")

	executed := 0
	for _, c := range components {
		out := filepath.Join(outDir, SanitizeName(c.ComponentName)+".pdf")
		if e.executeComponent(ctx, path, out, c) {
			executed++
			mpkg.IncSegmentCommand("success")
		} else {
			mpkg.IncSegmentCommand("failed")
		}
	}

	res := Result{
		Executed: executed,
		Total:    len(components),
		Message:  fmt.Sprintf("Segmentation partial (%d/%d extracted).", executed, len(components)),
	}
	if len(components) > 0 && float64(executed)/float64(len(components)) >= 0.5 {
		res.Status = runlog.StatusSuccess
	} else {
		res.Status = runlog.StatusPartialFailure
	}
	return res
}

// executeComponent runs the external split for one page range and verifies
// the output; on any failure it retries once via in-process page slicing.
func (e *Executor) executeComponent(ctx context.Context, in, out string, c plan.Component) bool {
	args := []string{in, "cat", rangeToken(c), "output", out}
	_, _, err := e.run.Run(ctx, e.pdftkBin, args, e.cfg.CommandTimeout)
	if err == nil && e.verifyOutput(out, c) {
		return true
	}
	if err != nil {
		log.Warn().Err(err).Str("component", c.ComponentName).Msg("external split failed - trying in-process fallback")
	} else {
		log.Warn().Str("component", c.ComponentName).Msg("external split output failed verification - trying in-process fallback")
	}
	_ = os.Remove(out)

	if ferr := e.extractPages(in, out, c.PageStart, c.PageEnd); ferr != nil {
		log.Error().Err(ferr).Str("component", c.ComponentName).Msg("in-process fallback failed")
		_ = os.Remove(out)
		return false
	}
	if !e.verifyOutput(out, c) {
		_ = os.Remove(out)
		return false
	}
	log.Info().Str("component", c.ComponentName).Int("start", c.PageStart).Int("end", c.PageEnd).Msg("in-process fallback succeeded")
	return true
}

// verifyOutput accepts a produced file only when its page count equals the
// planned range span.
func (e *Executor) verifyOutput(out string, c plan.Component) bool {
	n, err := e.outputPages(out)
	if err != nil {
		log.Warn().Err(err).Str("output", out).Msg("could not verify produced file")
		return false
	}
	if n != c.Span() {
		log.Warn().Str("output", out).Int("pages", n).Int("expected", c.Span()).Msg("produced file has wrong page count")
		return false
	}
	return true
}

// outputDir mirrors the source document's directory layout under the
// configured output root, with a per-document leaf directory.
func (e *Executor) outputDir(path string) (string, error) {
	base := SanitizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	rel := strings.TrimPrefix(filepath.Dir(path), string(filepath.Separator))
	dir := filepath.Join(e.cfg.OutputDir, rel, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

func rangeToken(c plan.Component) string {
	if c.PageStart == c.PageEnd {
		return fmt.Sprintf("%d", c.PageStart)
	}
	return fmt.Sprintf("%d-%d", c.PageStart, c.PageEnd)
}

// trimFilePages slices [start, end] into a new document in-process.
func trimFilePages(in, out string, start, end int) error {
	return api.TrimFile(in, out, []string{fmt.Sprintf("%d-%d", start, end)}, nil)
}
