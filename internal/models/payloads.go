package models

import "github.com/Lllllllleong/vergabeflow/internal/docproc"

// These structs define the JSON payloads exchanged with the browser and the
// publication workflow.

// IntakeDocument summarises one stored reference document in an intake response.
type IntakeDocument struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
	Excerpt      string  `json:"excerpt"`
}

// IntakeResponse is returned by the request-intake function.
type IntakeResponse struct {
	RequestID string              `json:"requestId"`
	Status    string              `json:"status"`
	Documents []IntakeDocument    `json:"documents"`
	Errors    []docproc.FileError `json:"errors"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PublicationWorkflowArgs is the argument of the publication workflow.
type PublicationWorkflowArgs struct {
	RequestID string `json:"requestId"`
}

// BundleRequest is the input for the bundle-aggregator function.
type BundleRequest struct {
	RequestID   string `json:"requestId"`
	ExecutionID string `json:"executionId"`
}

// BundleResponse is the output of the bundle-aggregator function.
type BundleResponse struct {
	Status       string `json:"status"`
	BundleGCSUri string `json:"bundleGcsUri"`
}
