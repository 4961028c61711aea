// Package filetype gates corpus files by magic bytes rather than filename.
package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
	IsPDF     bool
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	log.Debug().Str("mime", mtype.String()).Str("ext", mtype.Extension()).Str("file", filePath).Msg("detected file type")

	return &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsPDF:     mtype.Is("application/pdf"),
	}, nil
}

// IsPDF reports whether the file's magic bytes identify a PDF. A file that
// cannot be read fails the gate.
func (d *Detector) IsPDF(filePath string) bool {
	info, err := d.Detect(filePath)
	if err != nil {
		log.Warn().Err(err).Str("file", filePath).Msg("file type detection failed")
		return false
	}
	return info.IsPDF
}
