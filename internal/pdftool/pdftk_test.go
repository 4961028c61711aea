package pdftool

import (
	"context"
	"errors"
	"testing"
	"time"

	cfgpkg "github.com/local/bookpipe/internal/config"
)

type invocation struct {
	name string
	args []string
}

// fakeRunner dispatches on the binary name and records every invocation.
type fakeRunner struct {
	calls  []invocation
	handle func(name string, args []string) (stdout, stderr []byte, err error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	f.calls = append(f.calls, invocation{name: name, args: args})
	return f.handle(name, args)
}

func (f *fakeRunner) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func testToolsConfig() cfgpkg.ToolsConfig {
	return cfgpkg.ToolsConfig{
		PdftkBin:    "pdftk",
		GsBin:       "gs",
		QpdfBin:     "qpdf",
		DumpTimeout: time.Second,
		GsTimeout:   time.Second,
		QpdfTimeout: time.Second,
		Retries:     3,
		RetryCap:    time.Millisecond,
	}
}

func TestDumpDataOwnerPasswordSentinel(t *testing.T) {
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
		return nil, []byte("Error: OWNER PASSWORD REQUIRED, but not given"), &ToolError{Tool: name, ExitCode: 1}
	}}
	tools := NewTools(run, testToolsConfig())

	_, err := tools.DumpData(context.Background(), "locked.pdf")
	if !errors.Is(err, ErrOwnerPassword) {
		t.Fatalf("DumpData() error = %v, want ErrOwnerPassword", err)
	}
	// Owner-password conditions never resolve by retrying.
	if got := run.count("pdftk"); got != 1 {
		t.Fatalf("pdftk invocations = %d, want 1", got)
	}
}

func TestDumpDataRetriesTransientFailure(t *testing.T) {
	attempts := 0
	run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
		attempts++
		if attempts < 3 {
			return nil, []byte("boom"), &ToolError{Tool: name, ExitCode: 1}
		}
		return []byte("NumberOfPages: 12\n"), nil, nil
	}}
	tools := NewTools(run, testToolsConfig())

	out, err := tools.DumpData(context.Background(), "book.pdf")
	if err != nil {
		t.Fatalf("DumpData() error = %v", err)
	}
	if out != "NumberOfPages: 12\n" {
		t.Fatalf("DumpData() = %q", out)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestPageCount(t *testing.T) {
	t.Run("from dump", func(t *testing.T) {
		run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
			return []byte("InfoBegin\nNumberOfPages: 320\n"), nil, nil
		}}
		tools := NewTools(run, testToolsConfig())

		n, err := tools.PageCount(context.Background(), "book.pdf")
		if err != nil {
			t.Fatalf("PageCount() error = %v", err)
		}
		if n != 320 {
			t.Fatalf("PageCount() = %d, want 320", n)
		}
	})

	t.Run("dump missing field falls back in-process", func(t *testing.T) {
		run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
			return []byte("InfoBegin\n"), nil, nil
		}}
		tools := NewTools(run, testToolsConfig())
		tools.fitzPages = func(path string) (int, error) { return 77, nil }

		n, err := tools.PageCount(context.Background(), "book.pdf")
		if err != nil {
			t.Fatalf("PageCount() error = %v", err)
		}
		if n != 77 {
			t.Fatalf("PageCount() = %d, want 77", n)
		}
	})

	t.Run("dump failure falls back in-process", func(t *testing.T) {
		run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
			return nil, []byte("boom"), &ToolError{Tool: name, ExitCode: 1}
		}}
		tools := NewTools(run, testToolsConfig())
		tools.fitzPages = func(path string) (int, error) { return 41, nil }

		n, err := tools.PageCount(context.Background(), "book.pdf")
		if err != nil {
			t.Fatalf("PageCount() error = %v", err)
		}
		if n != 41 {
			t.Fatalf("PageCount() = %d, want 41", n)
		}
	})

	t.Run("zero pages is a failure", func(t *testing.T) {
		run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
			return []byte("NumberOfPages: 0\n"), nil, nil
		}}
		tools := NewTools(run, testToolsConfig())
		tools.fitzPages = func(path string) (int, error) { return 0, nil }

		if _, err := tools.PageCount(context.Background(), "book.pdf"); err == nil {
			t.Fatal("expected error for zero pages")
		}
	})
}
