package pdftool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	mpkg "github.com/local/bookpipe/internal/metrics"
)

// ToolError is the typed failure of one external tool invocation. Callers
// classify on the fields, never on message text.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	TimedOut bool
}

func (e *ToolError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out", e.Tool)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// Runner abstracts external process execution so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (stdout, stderr []byte, err error)
}

// ExecRunner runs the tool as an argv exec (never through a shell) with a
// hard per-call timeout enforced by killing the process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	cmd := exec.Command(name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Start(); err != nil {
		mpkg.ObserveTool(name, "start_failed")
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			code := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
			mpkg.ObserveTool(name, "error")
			return outBuf.Bytes(), errBuf.Bytes(), &ToolError{Tool: name, ExitCode: code, Stderr: truncateStderr(errBuf.String())}
		}
		mpkg.ObserveTool(name, "success")
		return outBuf.Bytes(), errBuf.Bytes(), nil
	case <-timer.C:
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		mpkg.ObserveTool(name, "timeout")
		log.Warn().Str("tool", name).Dur("timeout", timeout).Msg("external tool timed out - killed")
		return outBuf.Bytes(), errBuf.Bytes(), &ToolError{Tool: name, TimedOut: true}
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		mpkg.ObserveTool(name, "cancelled")
		return outBuf.Bytes(), errBuf.Bytes(), ctx.Err()
	}
}

func truncateStderr(s string) string {
	const max = 1024
	if len(s) <= max {
		return s
	}
	return s[:max]
}
