// Package layout is the stage-2 evidence producer: visual heuristics over
// rendered page content for documents without usable metadata.
package layout

// Doc abstracts an open PDF document for layout scanning.
type Doc interface {
	NumPage() int
	// Text returns the plain extracted text of the 0-based page.
	Text(i int) (string, error)
	// HTML returns the structured-text HTML rendering of the 0-based page,
	// carrying inline font-size styles.
	HTML(i int) (string, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in doc_open_fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the default opener, useful for tests or
// alternate backends.
func setDefaultOpener(o Opener) { defaultOpener = o }
