// Package outline extracts a document's bookmark tree from two independent
// sources: the embedded outline via pdfcpu (primary) and the pdftk metadata
// dump (secondary).
package outline

import (
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/rs/zerolog/log"

	"github.com/local/bookpipe/internal/evidence"
)

// ReadEmbedded walks the native bookmark tree depth-first, emitting entries
// in document reading order with zero-based nesting levels and 1-based
// physical pages. Corrupt, encrypted or unreadable outlines fail soft and
// return nil.
func ReadEmbedded(path string) []evidence.OutlineEntry {
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("cannot open PDF for outline read")
		return nil
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, nil)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("embedded outline unreadable - treating as no signal")
		return nil
	}

	var entries []evidence.OutlineEntry
	var walk func(items []pdfcpu.Bookmark, level int)
	walk = func(items []pdfcpu.Bookmark, level int) {
		for _, bm := range items {
			if bm.PageFrom >= 1 {
				entries = append(entries, evidence.OutlineEntry{
					Title: bm.Title,
					Page:  bm.PageFrom,
					Level: level,
				})
			}
			if len(bm.Kids) > 0 {
				walk(bm.Kids, level+1)
			}
		}
	}
	walk(bms, 0)
	return entries
}
