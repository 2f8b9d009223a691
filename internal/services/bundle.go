package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/models"
)

// BundleSeparator sits between documents of a bundle.
const BundleSeparator = "\n\n---\n\n"

// BundleStore is the part of the record store used by the bundle aggregator.
type BundleStore interface {
	GeneratedDocuments(ctx context.Context, requestID string) ([]models.GeneratedDocument, error)
	SetRequestBundle(ctx context.Context, id, bundleURI string) error
}

// BundleFunction concatenates the generated documents of a request into
// one publication bundle.
type BundleFunction struct {
	store BundleStore
	blobs BlobWriter
}

// NewBundle creates a BundleFunction from the environment.
func NewBundle(ctx context.Context) (*BundleFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := gcp.GetEnv("GENERATED_DOCUMENTS_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("GENERATED_DOCUMENTS_BUCKET must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewBundleWith(NewFirestoreStore(firestoreClient, gcp.CollectionsFromEnv()), gcp.NewBucketWriter(storageClient, bucket)), nil
}

// NewBundleWith wires a BundleFunction from its parts.
func NewBundleWith(store BundleStore, blobs BlobWriter) *BundleFunction {
	return &BundleFunction{store: store, blobs: blobs}
}

// Process writes <requestId>/vergabeunterlagen.md and marks the request published.
func (f *BundleFunction) Process(ctx context.Context, req *models.BundleRequest) (*models.BundleResponse, error) {
	logCtx := slog.With("requestId", req.RequestID, "executionId", req.ExecutionID)
	logCtx.Info("Starting bundle aggregation.")

	if req.RequestID == "" {
		return nil, fmt.Errorf("requestId cannot be empty")
	}
	docs, err := f.store.GeneratedDocuments(ctx, req.RequestID)
	if err != nil {
		logCtx.Error("Failed to load generated documents", "error", err)
		return nil, err
	}
	bundle, err := composeBundle(docs)
	if err != nil {
		logCtx.Error("Cannot compose bundle", "error", err)
		return nil, err
	}

	objectName := fmt.Sprintf("%s/vergabeunterlagen.md", req.RequestID)
	uri, err := f.blobs.Save(ctx, objectName, bundle)
	if err != nil {
		logCtx.Error("Failed to save bundle", "error", err, "object", objectName)
		return nil, err
	}
	if err := f.store.SetRequestBundle(ctx, req.RequestID, uri); err != nil {
		logCtx.Error("Failed to record bundle", "error", err)
		return nil, err
	}

	logCtx.Info("Bundle aggregation complete.", "bundleGcsUri", uri)
	return &models.BundleResponse{Status: "success", BundleGCSUri: uri}, nil
}

// composeBundle joins one document per type in canonical order.
func composeBundle(docs []models.GeneratedDocument) (string, error) {
	byType := make(map[string]models.GeneratedDocument, len(docs))
	for _, d := range docs {
		byType[d.DocumentType] = d
	}

	var parts, missing []string
	for _, docType := range docproc.Categories() {
		d, ok := byType[string(docType)]
		if !ok || strings.TrimSpace(d.Content) == "" {
			missing = append(missing, string(docType))
			continue
		}
		parts = append(parts, strings.TrimSpace(d.Content))
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing generated documents: %s", strings.Join(missing, ", "))
	}
	return strings.Join(parts, BundleSeparator), nil
}
