package docproc

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxFileSize is the largest accepted upload (10 MiB).
	MaxFileSize int64 = 10 * 1024 * 1024

	// MaxFilenameLength is counted in characters, not bytes.
	MaxFilenameLength = 255

	// PDFMIMEType is the only accepted content type.
	PDFMIMEType = "application/pdf"
)

// Validate checks an upload before any parsing happens.
func Validate(c UploadCandidate) error {
	if c.MIMEType != PDFMIMEType {
		return &ValidationError{
			Kind:    UnsupportedType,
			Message: fmt.Sprintf("Dateityp nicht unterstützt: %q. Erlaubt ist nur %s", c.MIMEType, PDFMIMEType),
		}
	}
	if c.Size > MaxFileSize {
		return &ValidationError{
			Kind: TooLarge,
			Message: fmt.Sprintf("Datei zu groß: %.2fMB. Maximal erlaubt: %dMB",
				float64(c.Size)/(1024*1024), MaxFileSize/(1024*1024)),
		}
	}
	if n := utf8.RuneCountInString(c.Name); n > MaxFilenameLength {
		return &ValidationError{
			Kind:    NameTooLong,
			Message: fmt.Sprintf("Dateiname zu lang: %d Zeichen. Maximal erlaubt: %d", n, MaxFilenameLength),
		}
	}
	return nil
}
