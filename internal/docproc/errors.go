package docproc

import (
	"errors"
	"fmt"
)

// ValidationKind enumerates why an upload was rejected.
type ValidationKind string

const (
	UnsupportedType ValidationKind = "unsupported_type"
	TooLarge        ValidationKind = "too_large"
	NameTooLong     ValidationKind = "name_too_long"
)

// ValidationError is returned by Validate. Message is user facing.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ExtractionKind enumerates why text extraction failed.
type ExtractionKind string

const (
	Timeout       ExtractionKind = "timeout"
	EmptyDocument ExtractionKind = "empty_document"
	ParseError    ExtractionKind = "parse_error"
)

// ExtractionError is returned by Extractor.Extract.
type ExtractionError struct {
	Kind ExtractionKind
	Err  error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case Timeout:
		return "PDF-Verarbeitung hat das Zeitlimit überschritten"
	case EmptyDocument:
		return "PDF enthält keinen extrahierbaren Text (möglicherweise gescannt oder verschlüsselt)"
	}
	if e.Err != nil {
		return fmt.Sprintf("PDF konnte nicht gelesen werden: %v", e.Err)
	}
	return "PDF konnte nicht gelesen werden"
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsValidationKind reports whether err is a ValidationError of the given kind.
func IsValidationKind(err error, kind ValidationKind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}

// IsExtractionKind reports whether err is an ExtractionError of the given kind.
func IsExtractionKind(err error, kind ExtractionKind) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == kind
}

// FailureKind returns the taxonomy label of err: a ValidationKind, an
// ExtractionKind, or "other".
func FailureKind(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return string(ve.Kind)
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return string(ee.Kind)
	}
	return "other"
}
