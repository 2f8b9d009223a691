package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// Collections names the Firestore collections of the application.
type Collections struct {
	References string
	Requests   string
	Commands   string
	Generated  string
}

// CollectionsFromEnv reads collection names, falling back to the defaults.
func CollectionsFromEnv() Collections {
	return Collections{
		References: GetEnv("FIRESTORE_COLLECTION_REFERENCES", "reference_documents"),
		Requests:   GetEnv("FIRESTORE_COLLECTION_REQUESTS", "procurement_requests"),
		Commands:   GetEnv("FIRESTORE_COLLECTION_COMMANDS", "cli_commands"),
		Generated:  GetEnv("FIRESTORE_COLLECTION_GENERATED", "generated_documents"),
	}
}
