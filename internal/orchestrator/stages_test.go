package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/layout"
)

// spyExtractors counts stage invocations so tests can assert the escalation
// order of the evidence state machine.
type spyExtractors struct {
	Extractors
	layoutCalls int
}

func newSpy(embedded []evidence.OutlineEntry, dump string, dumpErr error, res *layout.Result, layoutErr error) *spyExtractors {
	s := &spyExtractors{}
	s.EnsureDecrypted = func(ctx context.Context, path string) bool { return false }
	s.ReadEmbedded = func(path string) []evidence.OutlineEntry { return embedded }
	s.DumpData = func(ctx context.Context, path string) (string, error) { return dump, dumpErr }
	s.AnalyzeLayout = func(path string, maxPages int) (*layout.Result, error) {
		s.layoutCalls++
		return res, layoutErr
	}
	return s
}

func TestCollectEvidenceEmbeddedOutlineSkipsLayout(t *testing.T) {
	embedded := []evidence.OutlineEntry{
		{Title: "Contents", Page: 3, Level: 0},
		{Title: "Chapter 1", Page: 5, Level: 0},
		{Title: "1.1 Background", Page: 6, Level: 1},
	}
	spy := newSpy(embedded, "", errors.New("not needed"), nil, nil)

	rec := CollectEvidence(context.Background(), "book.pdf", spy.Extractors, 50)
	if rec.AnalysisType != evidence.AnalysisMetadataCheck {
		t.Fatalf("AnalysisType = %q, want %q", rec.AnalysisType, evidence.AnalysisMetadataCheck)
	}
	if !rec.HasOutline || rec.OutlineLength != 3 || rec.OutlineDepth != 2 {
		t.Fatalf("outline fields = %+v", rec)
	}
	if spy.layoutCalls != 0 {
		t.Fatalf("layout scan ran %d times, want 0", spy.layoutCalls)
	}
}

func TestCollectEvidenceSecondaryStandsIn(t *testing.T) {
	dump := "BookmarkBegin\nBookmarkTitle: Chapter 1\nBookmarkLevel: 1\nBookmarkPageNumber: 5\n"
	spy := newSpy(nil, dump, nil, nil, nil)

	rec := CollectEvidence(context.Background(), "book.pdf", spy.Extractors, 50)
	if rec.AnalysisType != evidence.AnalysisMetadataCheck {
		t.Fatalf("AnalysisType = %q, want %q", rec.AnalysisType, evidence.AnalysisMetadataCheck)
	}
	if !rec.HasSecondaryMetadata || rec.SecondaryOutlineLength != 1 {
		t.Fatalf("secondary fields = %+v", rec)
	}
	if rec.OutlineLength != 1 || rec.OutlineEntries[0].Title != "Chapter 1" {
		t.Fatalf("outline = %+v", rec.OutlineEntries)
	}
	if spy.layoutCalls != 0 {
		t.Fatal("layout scan must not run when the secondary list suffices")
	}
}

func TestCollectEvidenceEscalatesToLayout(t *testing.T) {
	res := &layout.Result{
		DistinctFontSizes: 7,
		TopFontSizes: []evidence.FontSizeCount{
			{Size: 12, Count: 840},
			{Size: 18, Count: 40},
		},
		TransitionFound:  true,
		PageNumberStyles: []string{"roman", "arabic"},
	}
	spy := newSpy(nil, "InfoBegin\nNumberOfPages: 200\n", nil, res, nil)

	rec := CollectEvidence(context.Background(), "book.pdf", spy.Extractors, 50)
	if rec.AnalysisType != evidence.AnalysisLayoutAnalysis {
		t.Fatalf("AnalysisType = %q, want %q", rec.AnalysisType, evidence.AnalysisLayoutAnalysis)
	}
	if spy.layoutCalls != 1 {
		t.Fatalf("layout scan ran %d times, want exactly 1", spy.layoutCalls)
	}
	if rec.HasOutline {
		t.Fatal("no outline evidence expected")
	}
	if rec.DistinctFontSizeCount != 7 || !rec.PageNumberingTransitionFound {
		t.Fatalf("layout fields = %+v", rec)
	}
	if len(rec.TopFontSizes) != 2 || rec.TopFontSizes[0].Size != 12 {
		t.Fatalf("TopFontSizes = %+v", rec.TopFontSizes)
	}
}

func TestCollectEvidenceAllStagesFail(t *testing.T) {
	spy := newSpy(nil, "", errors.New("dump failed"), nil, errors.New("cannot open document"))

	rec := CollectEvidence(context.Background(), "book.pdf", spy.Extractors, 50)
	if rec == nil {
		t.Fatal("CollectEvidence() must always return a record")
	}
	if rec.AnalysisType != evidence.AnalysisFailed {
		t.Fatalf("AnalysisType = %q, want %q", rec.AnalysisType, evidence.AnalysisFailed)
	}
	if rec.HasOutline || rec.HasSecondaryMetadata {
		t.Fatalf("record = %+v, want no positive evidence", rec)
	}
}
