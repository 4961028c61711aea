package pdftool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PasswordCache memoizes the outcome of the removal sub-protocol per path so
// a document is probed at most once per run. Mutex-guarded for parallel
// corpus workers.
type PasswordCache struct {
	mu sync.Mutex
	m  map[string]bool
}

func NewPasswordCache() *PasswordCache {
	return &PasswordCache{m: make(map[string]bool)}
}

func (c *PasswordCache) get(path string) (removed bool, seen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed, seen = c.m[path]
	return
}

func (c *PasswordCache) put(path string, removed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[path] = removed
}

// EnsureDecrypted runs the owner-password removal sub-protocol: probe the
// metadata dump, and if the owner-password condition is detected, attempt
// removal with ghostscript and then qpdf, verifying each candidate by exact
// page-count match before atomically swapping it over the source. Failure to
// remove is non-fatal; downstream stages tolerate the undecrypted document.
// Returns whether a password was removed.
func (t *Tools) EnsureDecrypted(ctx context.Context, path string) bool {
	if removed, seen := t.pw.get(path); seen {
		return removed
	}
	removed := t.removePasswordIfNeeded(ctx, path)
	t.pw.put(path, removed)
	return removed
}

func (t *Tools) removePasswordIfNeeded(ctx context.Context, path string) bool {
	_, err := t.DumpData(ctx, path)
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrOwnerPassword) {
		log.Warn().Err(err).Str("file", path).Msg("metadata probe failed without a password signature - skipping removal")
		return false
	}

	log.Info().Str("file", path).Msg("owner password detected - attempting removal")

	origPages, perr := t.pages(ctx, path)
	if perr != nil || origPages == 0 {
		log.Warn().Err(perr).Str("file", path).Msg("could not establish pre-removal page count - skipping removal")
		return false
	}

	abs, aerr := filepath.Abs(path)
	if aerr != nil {
		abs = path
	}

	// Primary: ghostscript rewrite with an empty password.
	tmp := tempSibling(abs, "unprotected")
	gsArgs := []string{
		"-sPDFPassword=",
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=pdfwrite",
		"-sOutputFile=" + tmp,
		"-f", abs,
	}
	if _, _, err := t.run.Run(ctx, t.cfg.GsBin, gsArgs, t.cfg.GsTimeout); err == nil {
		if t.verifyAndSwap(ctx, tmp, abs, origPages, t.cfg.GsBin) {
			return true
		}
	} else {
		log.Warn().Err(err).Str("file", path).Msg("ghostscript removal failed - trying qpdf")
	}
	_ = os.Remove(tmp)

	// Secondary: qpdf --decrypt with the same verification.
	tmp = tempSibling(abs, "qpdf_unprotected")
	if _, _, err := t.run.Run(ctx, t.cfg.QpdfBin, []string{"--decrypt", abs, tmp}, t.cfg.QpdfTimeout); err == nil {
		if t.verifyAndSwap(ctx, tmp, abs, origPages, t.cfg.QpdfBin) {
			return true
		}
	} else {
		log.Warn().Err(err).Str("file", path).Msg("qpdf removal failed")
	}
	_ = os.Remove(tmp)

	log.Warn().Str("file", path).Msg("password removal failed - continuing without removal")
	return false
}

// verifyAndSwap accepts the candidate only when its page count matches the
// pre-removal count exactly and is nonzero, then renames it over the source.
// The source is never touched until verification passes.
func (t *Tools) verifyAndSwap(ctx context.Context, candidate, dest string, wantPages int, tool string) bool {
	gotPages, err := t.pages(ctx, candidate)
	if err != nil || gotPages != wantPages || gotPages == 0 {
		log.Warn().
			Err(err).
			Str("tool", tool).
			Int("pages", gotPages).
			Int("expected", wantPages).
			Msg("decrypted output failed verification - rejected")
		_ = os.Remove(candidate)
		return false
	}
	if err := os.Rename(candidate, dest); err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("failed to swap decrypted output into place")
		_ = os.Remove(candidate)
		return false
	}
	log.Info().Str("file", dest).Str("tool", tool).Int("pages", wantPages).Msg("owner password removed")
	return true
}

func tempSibling(abs, tag string) string {
	base := strings.TrimSuffix(abs, filepath.Ext(abs))
	return fmt.Sprintf("%s_%s_%s.pdf", base, tag, uuid.NewString()[:8])
}
