package pdftool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFile creates a stand-in document so the atomic swap has real files to
// operate on.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func decryptTestTools(t *testing.T, run *fakeRunner, pages func(path string) (int, error)) *Tools {
	t.Helper()
	tools := NewTools(run, testToolsConfig())
	tools.pages = func(ctx context.Context, path string) (int, error) { return pages(path) }
	return tools
}

func TestEnsureDecryptedPrimaryVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "locked.pdf")
	writeFile(t, src, "original")

	run := &fakeRunner{}
	run.handle = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftk":
			return nil, []byte("OWNER PASSWORD REQUIRED"), &ToolError{Tool: name, ExitCode: 1}
		case "gs":
			for _, a := range args {
				if strings.HasPrefix(a, "-sOutputFile=") {
					writeFile(t, strings.TrimPrefix(a, "-sOutputFile="), "decrypted")
				}
			}
			return nil, nil, nil
		}
		t.Fatalf("unexpected tool %s", name)
		return nil, nil, nil
	}
	tools := decryptTestTools(t, run, func(path string) (int, error) { return 100, nil })

	if !tools.EnsureDecrypted(context.Background(), src) {
		t.Fatal("expected password removal to succeed")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "decrypted" {
		t.Fatalf("source content = %q, want the verified candidate swapped in", data)
	}
	if run.count("qpdf") != 0 {
		t.Fatal("secondary tool should not run when the primary verifies")
	}
}

func TestEnsureDecryptedMismatchFallsBackToSecondary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "locked.pdf")
	writeFile(t, src, "original")

	run := &fakeRunner{}
	run.handle = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftk":
			return nil, []byte("OWNER PASSWORD REQUIRED"), &ToolError{Tool: name, ExitCode: 1}
		case "gs":
			for _, a := range args {
				if strings.HasPrefix(a, "-sOutputFile=") {
					writeFile(t, strings.TrimPrefix(a, "-sOutputFile="), "gs output")
				}
			}
			return nil, nil, nil
		case "qpdf":
			writeFile(t, args[2], "qpdf output")
			return nil, nil, nil
		}
		return nil, nil, nil
	}
	// The primary's candidate drops a page; the secondary's matches exactly.
	tools := decryptTestTools(t, run, func(path string) (int, error) {
		switch {
		case strings.Contains(path, "qpdf_unprotected"):
			return 100, nil
		case strings.Contains(path, "unprotected"):
			return 99, nil
		default:
			return 100, nil
		}
	})

	if !tools.EnsureDecrypted(context.Background(), src) {
		t.Fatal("expected the secondary tool to succeed")
	}
	data, _ := os.ReadFile(src)
	if string(data) != "qpdf output" {
		t.Fatalf("source content = %q, want the qpdf candidate", data)
	}
}

func TestEnsureDecryptedBothFailIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "locked.pdf")
	writeFile(t, src, "original")

	run := &fakeRunner{}
	run.handle = func(name string, args []string) ([]byte, []byte, error) {
		if name == "pdftk" {
			return nil, []byte("OWNER PASSWORD REQUIRED"), &ToolError{Tool: name, ExitCode: 1}
		}
		return nil, []byte("cannot decrypt"), &ToolError{Tool: name, ExitCode: 1}
	}
	tools := decryptTestTools(t, run, func(path string) (int, error) { return 100, nil })

	if tools.EnsureDecrypted(context.Background(), src) {
		t.Fatal("removal should report failure")
	}
	data, _ := os.ReadFile(src)
	if string(data) != "original" {
		t.Fatalf("source content = %q, the source must never be corrupted", data)
	}
}

func TestEnsureDecryptedNoPasswordIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.pdf")
	writeFile(t, src, "original")

	run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("NumberOfPages: 10\n"), nil, nil
	}}
	tools := decryptTestTools(t, run, func(path string) (int, error) { return 10, nil })

	if tools.EnsureDecrypted(context.Background(), src) {
		t.Fatal("no password to remove")
	}
	if run.count("gs") != 0 || run.count("qpdf") != 0 {
		t.Fatal("removal tools must not run on a readable document")
	}
}

func TestEnsureDecryptedMemoized(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.pdf")
	writeFile(t, src, "original")

	run := &fakeRunner{handle: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("NumberOfPages: 10\n"), nil, nil
	}}
	tools := decryptTestTools(t, run, func(path string) (int, error) { return 10, nil })

	tools.EnsureDecrypted(context.Background(), src)
	probes := run.count("pdftk")
	tools.EnsureDecrypted(context.Background(), src)
	if run.count("pdftk") != probes {
		t.Fatal("second call should be served from the cache")
	}
}
