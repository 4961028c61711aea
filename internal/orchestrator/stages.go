package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/layout"
	"github.com/local/bookpipe/internal/outline"
)

// Extractors are the per-stage evidence producers. Function fields so tests
// can substitute spies for the real tool-backed implementations.
type Extractors struct {
	EnsureDecrypted func(ctx context.Context, path string) bool
	ReadEmbedded    func(path string) []evidence.OutlineEntry
	DumpData        func(ctx context.Context, path string) (string, error)
	AnalyzeLayout   func(path string, maxPages int) (*layout.Result, error)
}

// CollectEvidence runs the per-document evidence state machine: the password
// sub-protocol, then the cheap metadata check, escalating to the layout scan
// only when neither outline source produced anything. It always returns a
// record; total extraction failure is itself evidence (analysis_failed).
func CollectEvidence(ctx context.Context, path string, ex Extractors, maxLayoutPages int) *evidence.Record {
	rec := &evidence.Record{}

	if removed := ex.EnsureDecrypted(ctx, path); removed {
		log.Info().Str("file", path).Msg("password removed - proceeding")
	}

	embedded := ex.ReadEmbedded(path)

	var secondary []evidence.OutlineEntry
	if dump, err := ex.DumpData(ctx, path); err == nil {
		secondary = outline.ParseDumpData(dump)
	} else {
		log.Warn().Err(err).Str("file", path).Msg("secondary metadata dump failed")
	}
	rec.HasSecondaryMetadata = len(secondary) > 0
	rec.SecondaryOutlineLength = len(secondary)

	// Embedded outline is authoritative; the secondary list stands in when
	// the embedded tree is absent.
	authoritative := embedded
	if len(authoritative) == 0 {
		authoritative = secondary
	}
	rec.SetOutline(authoritative)

	if rec.HasOutline {
		rec.AnalysisType = evidence.AnalysisMetadataCheck
		log.Info().
			Str("file", path).
			Int("entries", rec.OutlineLength).
			Int("depth", rec.OutlineDepth).
			Msg("metadata check passed - layout scan skipped")
		return rec
	}

	log.Info().Str("file", path).Msg("no usable metadata - escalating to layout analysis")
	res, err := ex.AnalyzeLayout(path, maxLayoutPages)
	if err != nil {
		rec.AnalysisType = evidence.AnalysisFailed
		log.Warn().Err(err).Str("file", path).Msg("layout analysis failed - classifying with degraded evidence")
		return rec
	}

	rec.AnalysisType = evidence.AnalysisLayoutAnalysis
	rec.DistinctFontSizeCount = res.DistinctFontSizes
	rec.TopFontSizes = res.TopFontSizes
	rec.PageNumberingTransitionFound = res.TransitionFound
	rec.PageNumberStyles = res.PageNumberStyles
	return rec
}
