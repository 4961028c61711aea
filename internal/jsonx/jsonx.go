// Package jsonx recovers JSON payloads from free-form model output. Model
// responses frequently wrap the payload in markdown code fences or surround
// it with prose; ParseLenient tries the raw text first and falls back to the
// stripped/extracted candidates.
package jsonx

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoJSON is returned when no candidate in the content parses as JSON.
var ErrNoJSON = errors.New("no parseable JSON in content")

// ParseLenient parses JSON from model output, with lightweight recovery for
// markdown code fences and surrounding text. Returns the raw message of the
// first candidate that parses.
func ParseLenient(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrNoJSON
	}

	candidates := []string{content}
	if stripped := StripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := ExtractCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, ErrNoJSON
}

// StripCodeFences removes a leading/trailing markdown code fence. Returns ""
// when the content is not fenced.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractCandidate returns the outermost bracket-delimited span of the
// content, preferring whichever of `{` or `[` appears first.
func ExtractCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// MustCompileSchema compiles an inline JSON Schema document, panicking on
// error. Intended for package-level schema constants.
func MustCompileSchema(name, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// Validate validates a raw JSON message against a compiled schema. The raw
// message must already be known-parseable.
func Validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
