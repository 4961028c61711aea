package pdftool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/bookpipe/internal/config"
	"github.com/local/bookpipe/internal/resilience"
)

// ErrOwnerPassword is surfaced when the metadata dump fails because the
// document carries an owner password. Callers react by running the removal
// sub-protocol; they never match on stderr text themselves.
var ErrOwnerPassword = errors.New("owner password required")

// Tools wraps the external PDF command-line tools (pdftk, ghostscript, qpdf)
// behind the resilience layer, with an in-process go-fitz fallback for page
// counting.
type Tools struct {
	run Runner
	cfg cfgpkg.ToolsConfig

	// pages is the page counter used for decryption verification;
	// overridable in tests.
	pages func(ctx context.Context, path string) (int, error)
	// fitzPages is the in-process fallback page counter.
	fitzPages func(path string) (int, error)

	pw *PasswordCache
}

func NewTools(run Runner, cfg cfgpkg.ToolsConfig) *Tools {
	t := &Tools{
		run:       run,
		cfg:       cfg,
		fitzPages: fitzPageCount,
		pw:        NewPasswordCache(),
	}
	t.pages = t.PageCount
	return t
}

func (t *Tools) retryPolicy() resilience.Policy {
	attempts := uint(t.cfg.Retries)
	if attempts == 0 {
		attempts = 1
	}
	return resilience.Policy{
		Attempts: attempts,
		Delay:    time.Second, // doubles per attempt up to RetryCap
		MaxDelay: t.cfg.RetryCap,
		RetryIf: func(err error) bool {
			// Owner-password conditions never resolve by retrying.
			if errors.Is(err, ErrOwnerPassword) {
				return false
			}
			var te *ToolError
			if errors.As(err, &te) {
				return true
			}
			return false
		},
	}
}

// DumpData runs `pdftk <file> dump_data_utf8` with retries, replacing invalid
// UTF-8 in the output. An owner-password condition is reported as
// ErrOwnerPassword.
func (t *Tools) DumpData(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	var out string
	err = resilience.Invoke(ctx, t.retryPolicy(), func() error {
		stdout, stderr, rerr := t.run.Run(ctx, t.cfg.PdftkBin, []string{abs, "dump_data_utf8"}, t.cfg.DumpTimeout)
		if rerr != nil {
			if strings.Contains(string(stderr), "OWNER PASSWORD REQUIRED") {
				return fmt.Errorf("%s: %w", abs, ErrOwnerPassword)
			}
			return rerr
		}
		out = strings.ToValidUTF8(string(stdout), "�")
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// PageCount resolves the page count from the pdftk dump, falling back to the
// in-process go-fitz reader when the dump fails or omits the field. Zero
// pages is a failure.
func (t *Tools) PageCount(ctx context.Context, path string) (int, error) {
	// DumpData retries internally, so the chain itself runs single-attempt.
	var n int
	err := resilience.InvokeWithFallback(ctx, resilience.Policy{Attempts: 1},
		func() error {
			dump, err := t.DumpData(ctx, path)
			if err != nil {
				return err
			}
			m, err := parsePageCount(dump)
			if err != nil {
				return err
			}
			n = m
			return nil
		},
		func() error {
			log.Warn().Str("file", path).Msg("pdftk page count unavailable - using in-process fallback")
			m, err := t.fitzPages(path)
			if err != nil {
				return err
			}
			n = m
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("page count failed for %s: %w", path, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("page count failed for %s: zero pages", path)
	}
	return n, nil
}

// parsePageCount extracts a positive NumberOfPages value from a pdftk dump.
func parsePageCount(dump string) (int, error) {
	for _, line := range strings.Split(dump, "\n") {
		if !strings.HasPrefix(line, "NumberOfPages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "NumberOfPages:")))
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("no usable NumberOfPages in dump")
}

func fitzPageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
