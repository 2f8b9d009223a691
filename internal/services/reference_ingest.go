package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/Lllllllleong/vergabeflow/internal/models"
)

// ReferenceStore is the part of the record store used by reference ingest.
type ReferenceStore interface {
	FindReferenceByHash(ctx context.Context, fileHash string) (string, bool, error)
	CreateReference(ctx context.Context, ref models.ReferenceDocument) (string, error)
	CompleteReference(ctx context.Context, id string, ref models.ReferenceDocument) error
	FailReference(ctx context.Context, id, details string) error
}

// ObjectReader downloads an object, failing with a *gcp.ObjectTooLargeError above limit bytes.
type ObjectReader func(ctx context.Context, bucket, object string, limit int64) ([]byte, error)

// GCSEvent is the payload of a storage object finalize event.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// ReferenceIngestFunction classifies reference PDFs dropped into a bucket.
type ReferenceIngestFunction struct {
	store     ReferenceStore
	read      ObjectReader
	processor *docproc.Processor
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewReferenceIngest creates a ReferenceIngestFunction from the environment.
func NewReferenceIngest(ctx context.Context) (*ReferenceIngestFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	processor, err := ProcessorFromEnv(slog.Default())
	if err != nil {
		return nil, err
	}

	read := func(ctx context.Context, bucket, object string, limit int64) ([]byte, error) {
		return gcp.ReadObject(ctx, storageClient, bucket, object, limit)
	}
	f := NewReferenceIngestWith(NewFirestoreStore(firestoreClient, gcp.CollectionsFromEnv()), read, processor, nil)
	slog.Info("Reference ingest logic initialized.")
	return f, nil
}

// NewReferenceIngestWith wires a ReferenceIngestFunction from its parts.
func NewReferenceIngestWith(store ReferenceStore, read ObjectReader, processor *docproc.Processor, m *metrics.Metrics) *ReferenceIngestFunction {
	return &ReferenceIngestFunction{store: store, read: read, processor: processor, metrics: m, now: time.Now}
}

// Process ingests one uploaded object. Documents the pipeline rejects are
// recorded as failed and not retried; store and storage errors are returned.
func (f *ReferenceIngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new reference document.")

	candidate := docproc.UploadCandidate{
		Name:     path.Base(e.Name),
		MIMEType: eventMIMEType(e),
	}
	if size, err := strconv.ParseInt(e.Size, 10, 64); err == nil {
		candidate.Size = size
	}

	data, err := f.read(ctx, e.Bucket, e.Name, docproc.MaxFileSize)
	if errors.Is(err, gcp.ErrObjectTooLarge) {
		var tooLarge *gcp.ObjectTooLargeError
		if candidate.Size <= docproc.MaxFileSize && errors.As(err, &tooLarge) {
			candidate.Size = tooLarge.Size
		}
		if candidate.Size <= docproc.MaxFileSize {
			candidate.Size = docproc.MaxFileSize + 1
		}
		return f.recordRejected(ctx, logCtx, e, candidate, docproc.Validate(candidate))
	}
	if err != nil {
		logCtx.Error("Failed to download reference document", "error", err)
		return err
	}
	candidate.Size = int64(len(data))

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, dup, err := f.store.FindReferenceByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if dup {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", existingID)
		return nil
	}

	docID, err := f.store.CreateReference(ctx, models.ReferenceDocument{
		FileHash:         fileHash,
		Source:           gcsURI(e),
		Filename:         candidate.Name,
		FileSize:         candidate.Size,
		ProcessingStatus: models.ProcessingStatusProcessing,
		CreatedAt:        f.now(),
	})
	if err != nil {
		logCtx.Error("Failed to create reference record", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docID)

	processed, err := f.processor.ProcessFile(ctx, docproc.UploadFile{UploadCandidate: candidate, Data: data})
	if err != nil {
		f.observe(nil, candidate.Name, err)
		return f.handleError(ctx, logCtx, docID, "failed to process reference document", err)
	}

	ref, err := models.NewReferenceDocument(*processed)
	if err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to shape reference record", err)
	}
	ref.FileHash = fileHash
	ref.Source = gcsURI(e)
	ref.CreatedAt = f.now()
	if err := f.store.CompleteReference(ctx, docID, ref); err != nil {
		logCtx.Error("Failed to store processed reference", "error", err)
		return err
	}
	f.observe(processed, "", nil)

	logCtx.Info("Reference document classified.", "documentType", ref.DocumentType, "confidence", ref.Confidence)
	return nil
}

// recordRejected stores a failed record for an object that could not even be read.
func (f *ReferenceIngestFunction) recordRejected(ctx context.Context, logCtx *slog.Logger, e GCSEvent, candidate docproc.UploadCandidate, cause error) error {
	f.observe(nil, candidate.Name, cause)
	logCtx.Warn("Reference document rejected.", "error", cause)
	_, err := f.store.CreateReference(ctx, models.ReferenceDocument{
		Source:           gcsURI(e),
		Filename:         candidate.Name,
		FileSize:         candidate.Size,
		ProcessingStatus: models.ProcessingStatusFailed,
		ErrorDetails:     cause.Error(),
		CreatedAt:        f.now(),
		ProcessedAt:      f.now(),
	})
	if err != nil {
		logCtx.Error("Failed to record rejected reference", "error", err)
		return err
	}
	return nil
}

// handleError marks the record failed. Pipeline errors are final and
// swallowed so the event is not redelivered.
func (f *ReferenceIngestFunction) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr, "kind", docproc.FailureKind(originalErr))
	if err := f.store.FailReference(ctx, docID, originalErr.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update reference status to failed after a processing error.", "updateError", err)
		return fmt.Errorf("%s", fullError)
	}
	return nil
}

func (f *ReferenceIngestFunction) observe(doc *docproc.ProcessedDocument, filename string, err error) {
	var report docproc.BatchReport
	if doc != nil {
		report.Results = append(report.Results, *doc)
	}
	if err != nil {
		report.Errors = append(report.Errors, docproc.FileError{Filename: filename, Error: err.Error(), Kind: docproc.ErrorKindProcessing, Err: err})
	}
	f.metrics.ObserveBatch(report)
}

func eventMIMEType(e GCSEvent) string {
	if e.ContentType != "" {
		return strings.TrimSpace(strings.Split(e.ContentType, ";")[0])
	}
	if strings.EqualFold(path.Ext(e.Name), ".pdf") {
		return docproc.PDFMIMEType
	}
	return "application/octet-stream"
}

func gcsURI(e GCSEvent) string { return fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name) }
