// Package classify defines the structural-complexity classification levels,
// the prompt sent to the remote service and the permissive response parser.
package classify

// Known structural complexity levels. LevelError is the sentinel recorded
// when classification failed (exhausted retries, malformed response); it
// keeps the one-terminal-record-per-document guarantee.
const (
	Level1  = "Level 1"
	Level2  = "Level 2"
	Level3  = "Level 3"
	Level4A = "Level 4A"
	Level4B = "Level 4B"
	Level5  = "Level 5"

	LevelError = "Error"
)

// Result is the per-document classification outcome. Immutable once written
// to the run log.
type Result struct {
	Classification string `json:"classification"`
	Justification  string `json:"justification"`
	RawOutput      string `json:"raw_output,omitempty"`
}

// ErrorResult builds the sentinel result for a failed classification.
func ErrorResult(cause string, raw string) Result {
	return Result{Classification: LevelError, Justification: cause, RawOutput: raw}
}
