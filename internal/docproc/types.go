// Package docproc validates uploaded reference PDFs, extracts their text and
// classifies them into the three German procurement document categories.
//
// The flow for one file is: Validate → Extractor.Extract → Classifier.Classify
// → Sanitize → Excerpt. Processor.ProcessFiles runs that flow over a batch and
// never aborts on a single bad file.
package docproc

import "time"

// Category identifies a procurement document type.
type Category string

const (
	CategoryLeistungsbeschreibung Category = "leistungsbeschreibung"
	CategoryEignungskriterien     Category = "eignungskriterien"
	CategoryZuschlagskriterien    Category = "zuschlagskriterien"
	CategoryUnknown               Category = "unknown"
)

// Categories returns the classifiable categories in declaration order.
// Ties in classification resolve to the earlier entry.
func Categories() []Category {
	return []Category{
		CategoryLeistungsbeschreibung,
		CategoryEignungskriterien,
		CategoryZuschlagskriterien,
	}
}

// Valid reports whether c is one of the classifiable categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLeistungsbeschreibung, CategoryEignungskriterien, CategoryZuschlagskriterien:
		return true
	}
	return false
}

// UploadCandidate describes a file as declared by the uploader.
type UploadCandidate struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

// UploadFile is an UploadCandidate together with its content.
type UploadFile struct {
	UploadCandidate
	Data []byte
}

// ExtractedDocument is the raw text pulled out of a PDF.
type ExtractedDocument struct {
	SourceName string `json:"source_name"`
	RawText    string `json:"raw_text"`
	PageCount  int    `json:"page_count"` // pages actually read, ≤ MaxPages
}

// CategoryScore is the per-category breakdown of a classification.
type CategoryScore struct {
	Score      float64 `json:"score"`
	MatchCount int     `json:"match_count"`
	Density    float64 `json:"density"` // matches per 1000 characters, diagnostic only
}

// ClassificationResult is the outcome of Classifier.Classify.
type ClassificationResult struct {
	Category   Category                   `json:"category"`
	Confidence float64                    `json:"confidence"`
	Scores     map[Category]CategoryScore `json:"scores"`
}

// DocumentMetadata carries counts reported alongside a processed document.
type DocumentMetadata struct {
	PageCount      int `json:"pageCount"`
	WordCount      int `json:"wordCount"`
	CharacterCount int `json:"characterCount"`
}

// ProcessedDocument is the terminal artifact of the pipeline for one file.
type ProcessedDocument struct {
	Filename      string           `json:"filename"`
	FileSize      int64            `json:"file_size"`
	DocumentType  Category         `json:"document_type"`
	Confidence    float64          `json:"confidence"`
	SanitizedText string           `json:"extracted_text"`
	Excerpt       string           `json:"excerpt"`
	ProcessedAt   time.Time        `json:"processed_at"`
	Metadata      DocumentMetadata `json:"metadata"`

	// Scores is the classifier breakdown, kept for diagnostics.
	Scores map[Category]CategoryScore `json:"scores,omitempty"`
}
