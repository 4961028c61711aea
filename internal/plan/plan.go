// Package plan models a segmentation plan: the ordered page-range components
// a document should be split into, parsed permissively from model output and
// validated against the document's real page count.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/local/bookpipe/internal/jsonx"
)

// Component is one planned output document: a named page range with the
// model's reasoning.
type Component struct {
	ComponentName string `json:"component_name"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	Justification string `json:"justification"`
}

// Span is the number of pages the component covers.
func (c Component) Span() int { return c.PageEnd - c.PageStart + 1 }

// MalformedPlanError reports model output that could not be parsed into a
// plan, even after recovery.
type MalformedPlanError struct {
	Reason string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed segmentation plan: %s", e.Reason)
}

// rawComponent is the wire element. Either the typed page range or a
// pdftk_command string carrying the range as a `cat START[-END]` token.
type rawComponent struct {
	ComponentName string `json:"component_name"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	PdftkCommand  string `json:"pdftk_command"`
	Justification string `json:"justification"`
}

var planSchema = jsonx.MustCompileSchema("plan.json", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["component_name"],
		"properties": {
			"component_name": {"type": "string", "minLength": 1},
			"page_start": {"type": "integer", "minimum": 1},
			"page_end": {"type": "integer", "minimum": 0},
			"pdftk_command": {"type": "string"},
			"justification": {"type": "string"}
		},
		"anyOf": [
			{"required": ["page_start"]},
			{"required": ["pdftk_command"]}
		]
	}
}`)

var catRangeRegex = regexp.MustCompile(`\bcat\s+(\d+)(?:\s*-\s*(\d+))?\b`)

// Parse extracts a segmentation plan from raw model output. Accepted shapes:
// a bare JSON array of components, or the legacy object wrapper
// {"segmentation_commands": [...]}; each element carries its page range
// either as typed page_start/page_end integers or as a pdftk_command string
// with IN_FILE/OUT_FILE placeholders and a `cat START[-END]` token. A
// component whose range has no end page (bare `cat START`, or page_end 0)
// extends to totalPages. An empty plan is a valid outcome, not an error.
func Parse(raw string, totalPages int) ([]Component, error) {
	msg, err := jsonx.ParseLenient(raw)
	if err != nil {
		return nil, &MalformedPlanError{Reason: "no JSON payload in response"}
	}

	list, err := unwrapList(msg)
	if err != nil {
		return nil, err
	}
	if err := jsonx.Validate(planSchema, list); err != nil {
		return nil, &MalformedPlanError{Reason: err.Error()}
	}

	var rawComponents []rawComponent
	if err := json.Unmarshal(list, &rawComponents); err != nil {
		return nil, &MalformedPlanError{Reason: err.Error()}
	}

	components := make([]Component, 0, len(rawComponents))
	for i, rc := range rawComponents {
		c, err := resolveComponent(rc, totalPages)
		if err != nil {
			return nil, &MalformedPlanError{Reason: fmt.Sprintf("component %d (%s): %v", i, rc.ComponentName, err)}
		}
		components = append(components, c)
	}
	return components, nil
}

// unwrapList normalizes the payload to the bare-array shape.
func unwrapList(msg json.RawMessage) (json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(msg, &list); err == nil {
		return msg, nil
	}

	var wrapper struct {
		SegmentationCommands json.RawMessage `json:"segmentation_commands"`
	}
	if err := json.Unmarshal(msg, &wrapper); err == nil && wrapper.SegmentationCommands != nil {
		if err := json.Unmarshal(wrapper.SegmentationCommands, &list); err == nil {
			return wrapper.SegmentationCommands, nil
		}
	}
	return nil, &MalformedPlanError{Reason: "payload is neither a component array nor a segmentation_commands wrapper"}
}

func resolveComponent(rc rawComponent, totalPages int) (Component, error) {
	c := Component{
		ComponentName: rc.ComponentName,
		PageStart:     rc.PageStart,
		PageEnd:       rc.PageEnd,
		Justification: rc.Justification,
	}

	if c.PageStart == 0 {
		if rc.PdftkCommand == "" {
			return Component{}, fmt.Errorf("no page range")
		}
		m := catRangeRegex.FindStringSubmatch(rc.PdftkCommand)
		if m == nil {
			return Component{}, fmt.Errorf("no cat page token in command %q", rc.PdftkCommand)
		}
		c.PageStart, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			c.PageEnd, _ = strconv.Atoi(m[2])
		}
	}

	// Open-ended range runs to the end of the document.
	if c.PageEnd == 0 {
		c.PageEnd = totalPages
	}
	return c, nil
}

// Validate applies the hard range constraints against the document's page
// count. Any violation makes the whole plan unusable.
func Validate(components []Component, totalPages int) error {
	for i, c := range components {
		switch {
		case c.PageStart < 1:
			return fmt.Errorf("component %d (%s): page_start %d < 1", i, c.ComponentName, c.PageStart)
		case c.PageEnd < c.PageStart:
			return fmt.Errorf("component %d (%s): page_end %d < page_start %d", i, c.ComponentName, c.PageEnd, c.PageStart)
		case c.PageEnd > totalPages:
			return fmt.Errorf("component %d (%s): page_end %d > total pages %d", i, c.ComponentName, c.PageEnd, totalPages)
		}
	}
	return nil
}

// Completeness reports how well the plan covers [1, totalPages]. Gaps and
// overlaps are informational; incomplete plans still execute.
type Completeness struct {
	Complete bool
	Gaps     []string
	Overlaps []string
}

// CheckCompleteness analyzes coverage of a validated plan in component order.
func CheckCompleteness(components []Component, totalPages int) Completeness {
	var comp Completeness
	if len(components) == 0 {
		return comp
	}

	covered := make([]int, totalPages+1)
	for _, c := range components {
		for p := c.PageStart; p <= c.PageEnd && p <= totalPages; p++ {
			covered[p]++
		}
	}

	for p := 1; p <= totalPages; p++ {
		switch {
		case covered[p] == 0:
			start := p
			for p+1 <= totalPages && covered[p+1] == 0 {
				p++
			}
			comp.Gaps = append(comp.Gaps, rangeLabel(start, p))
		case covered[p] > 1:
			start := p
			for p+1 <= totalPages && covered[p+1] > 1 {
				p++
			}
			comp.Overlaps = append(comp.Overlaps, rangeLabel(start, p))
		}
	}

	comp.Complete = len(comp.Gaps) == 0 && len(comp.Overlaps) == 0
	return comp
}

func rangeLabel(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}
