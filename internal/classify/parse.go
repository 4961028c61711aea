package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/local/bookpipe/internal/jsonx"
)

// MalformedResponseError reports a model response that could not be parsed
// into a classification result, even after recovery.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed classification response: %s", e.Reason)
}

var resultSchema = jsonx.MustCompileSchema("classification.json", `{
	"type": "object",
	"required": ["classification", "justification"],
	"properties": {
		"classification": {"type": "string", "minLength": 1},
		"justification": {"type": "string"}
	}
}`)

// ParseResponse extracts a classification result from raw model output.
// Primary format is a JSON object with "classification" and "justification"
// keys, recovered from code fences or surrounding prose when necessary. The
// legacy two-line "LEVEL:"/"JUSTIFICATION:" format is still accepted. The raw
// output is always attached to the result for offline review.
func ParseResponse(raw string) (Result, error) {
	if msg, err := jsonx.ParseLenient(raw); err == nil {
		if verr := jsonx.Validate(resultSchema, msg); verr == nil {
			var res Result
			if uerr := json.Unmarshal(msg, &res); uerr == nil {
				res.RawOutput = raw
				return res, nil
			}
		}
	}

	if res, ok := parseLegacyLines(raw); ok {
		res.RawOutput = raw
		return res, nil
	}

	return Result{}, &MalformedResponseError{Reason: "no classification/justification pair found", Raw: raw}
}

// parseLegacyLines handles the line-oriented response format:
//
//	LEVEL: Level 2
//	JUSTIFICATION: Consistent deep hierarchy in the outline.
func parseLegacyLines(raw string) (Result, bool) {
	var res Result
	for _, line := range strings.Split(raw, "\n") {
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "LEVEL:"):
			res.Classification = strings.TrimSpace(line[len("LEVEL:"):])
		case strings.HasPrefix(upper, "JUSTIFICATION:"):
			res.Justification = strings.TrimSpace(line[len("JUSTIFICATION:"):])
		}
	}
	return res, res.Classification != ""
}
