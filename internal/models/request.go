package models

import (
	"time"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
)

// Lifecycle of a ProcurementRequest.
const (
	RequestStatusQueued    = "queued"
	RequestStatusGenerated = "generated"
	RequestStatusPublished = "published"
	RequestStatusFailed    = "failed"
)

// ProcurementRequest is a user's description of a procurement need.
type ProcurementRequest struct {
	Title          string    `firestore:"title" json:"title"`
	Description    string    `firestore:"description" json:"description"`
	Budget         string    `firestore:"budget,omitempty" json:"budget,omitempty"`
	Deadline       string    `firestore:"deadline,omitempty" json:"deadline,omitempty"`
	Status         string    `firestore:"status" json:"status"`
	ErrorDetails   string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	ReferenceCount int       `firestore:"referenceCount" json:"referenceCount"`
	BundleURI      string    `firestore:"bundleUri,omitempty" json:"bundleUri,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt      time.Time `firestore:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Lifecycle of a GenerationCommand.
const (
	CommandStatusPending   = "pending"
	CommandStatusRunning   = "running"
	CommandStatusCompleted = "completed"
	CommandStatusFailed    = "failed"
)

// GenerationCommand is a queued job asking the AI backend to write one
// procurement document for a request.
type GenerationCommand struct {
	RequestID    string    `firestore:"requestId" json:"requestId"`
	DocumentType string    `firestore:"documentType" json:"documentType"`
	Status       string    `firestore:"status" json:"status"`
	Attempts     int       `firestore:"attempts" json:"attempts"`
	WorkerID     string    `firestore:"workerId,omitempty" json:"workerId,omitempty"`
	Error        string    `firestore:"error,omitempty" json:"error,omitempty"`
	OutputURI    string    `firestore:"outputUri,omitempty" json:"outputUri,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
	StartedAt    time.Time `firestore:"startedAt,omitempty" json:"startedAt,omitempty"`
	FinishedAt   time.Time `firestore:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// CommandID is the deterministic ID of the command producing docType for a
// request, so re-enqueueing the same request cannot duplicate work.
func CommandID(requestID string, docType docproc.Category) string {
	return requestID + "_" + string(docType)
}

// GeneratedDocument is an AI-authored procurement document republished into
// the record store.
type GeneratedDocument struct {
	RequestID    string    `firestore:"requestId" json:"requestId"`
	DocumentType string    `firestore:"documentType" json:"documentType"`
	Title        string    `firestore:"title" json:"title"`
	Content      string    `firestore:"content" json:"content"`
	Model        string    `firestore:"model" json:"model"`
	GCSUri       string    `firestore:"gcsUri,omitempty" json:"gcsUri,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// DocumentTitle is the canonical German title for a document type.
func DocumentTitle(docType docproc.Category) string {
	switch docType {
	case docproc.CategoryLeistungsbeschreibung:
		return "Leistungsbeschreibung"
	case docproc.CategoryEignungskriterien:
		return "Eignungskriterien"
	case docproc.CategoryZuschlagskriterien:
		return "Zuschlagskriterien"
	}
	return "Unbekanntes Dokument"
}
