package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
)

// Processing states of a ReferenceDocument.
const (
	ProcessingStatusProcessing = "processing"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
)

// ReferenceDocument is an uploaded reference PDF as stored in Firestore.
// Field names follow the record-store collection layout consumed by the UI.
type ReferenceDocument struct {
	RequestID        string    `firestore:"requestId,omitempty" json:"requestId,omitempty"`
	FileHash         string    `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	Source           string    `firestore:"source,omitempty" json:"source,omitempty"`
	Filename         string    `firestore:"filename" json:"filename"`
	DocumentType     string    `firestore:"document_type" json:"document_type"`
	Confidence       float64   `firestore:"confidence" json:"confidence"`
	ExtractedText    string    `firestore:"extracted_text" json:"extracted_text"`
	Excerpt          string    `firestore:"excerpt" json:"excerpt"`
	Metadata         string    `firestore:"metadata" json:"metadata"` // JSON encoded docproc.DocumentMetadata
	FileSize         int64     `firestore:"file_size" json:"file_size"`
	ProcessingStatus string    `firestore:"processing_status" json:"processing_status"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
	ProcessedAt      time.Time `firestore:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// NewReferenceDocument shapes a processed document for the record store.
func NewReferenceDocument(doc docproc.ProcessedDocument) (ReferenceDocument, error) {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return ReferenceDocument{}, fmt.Errorf("failed to encode metadata for %s: %w", doc.Filename, err)
	}
	return ReferenceDocument{
		Filename:         doc.Filename,
		DocumentType:     string(doc.DocumentType),
		Confidence:       doc.Confidence,
		ExtractedText:    doc.SanitizedText,
		Excerpt:          doc.Excerpt,
		Metadata:         string(meta),
		FileSize:         doc.FileSize,
		ProcessingStatus: ProcessingStatusCompleted,
		ProcessedAt:      doc.ProcessedAt,
	}, nil
}

// DecodeMetadata parses the JSON metadata column.
func (r ReferenceDocument) DecodeMetadata() (docproc.DocumentMetadata, error) {
	var meta docproc.DocumentMetadata
	if r.Metadata == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata of %s: %w", r.Filename, err)
	}
	return meta, nil
}
