package evidence

// AnalysisType records which stage produced the final evidence for a document.
type AnalysisType string

const (
	AnalysisMetadataCheck  AnalysisType = "metadata_check"
	AnalysisLayoutAnalysis AnalysisType = "layout_analysis"
	AnalysisFailed         AnalysisType = "analysis_failed"
)

// OutlineEntry is one bookmark in document reading order. Level is the
// nesting depth, zero-based, not guaranteed contiguous.
type OutlineEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
	Level int    `json:"level"`
}

// FontSizeCount is a rounded font size and how often it occurred.
type FontSizeCount struct {
	Size  int `json:"size"`
	Count int `json:"count"`
}

// Record is the per-document structural signal bundle consumed by the
// classifier. Invariant: OutlineDepth == 0 exactly when OutlineLength == 0.
type Record struct {
	AnalysisType AnalysisType `json:"analysis_type"`

	HasOutline     bool           `json:"has_outline"`
	OutlineEntries []OutlineEntry `json:"outline_entries,omitempty"`
	OutlineDepth   int            `json:"outline_depth"`
	OutlineLength  int            `json:"outline_length"`

	HasSecondaryMetadata   bool `json:"has_secondary_metadata"`
	SecondaryOutlineLength int  `json:"secondary_outline_length,omitempty"`

	DistinctFontSizeCount        int             `json:"distinct_font_size_count"`
	TopFontSizes                 []FontSizeCount `json:"top_font_sizes,omitempty"`
	PageNumberingTransitionFound bool            `json:"page_numbering_transition_found"`
	PageNumberStyles             []string        `json:"page_number_styles,omitempty"`
}

// SetOutline installs the authoritative outline and keeps the derived
// depth/length fields consistent with it.
func (r *Record) SetOutline(entries []OutlineEntry) {
	r.OutlineEntries = entries
	r.OutlineLength = len(entries)
	r.OutlineDepth = Depth(entries)
	r.HasOutline = len(entries) > 0
}

// Depth returns max nesting level + 1, or 0 for an empty outline.
func Depth(entries []OutlineEntry) int {
	if len(entries) == 0 {
		return 0
	}
	max := 0
	for _, e := range entries {
		if e.Level > max {
			max = e.Level
		}
	}
	return max + 1
}
