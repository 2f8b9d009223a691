package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrClaimExpired is recorded on commands whose worker never reported back.
var ErrClaimExpired = errors.New("claim expired")

// FirestoreStore persists all application records in Firestore.
type FirestoreStore struct {
	client *firestore.Client
	cols   gcp.Collections
	now    func() time.Time
}

// NewFirestoreStore wraps a Firestore client.
func NewFirestoreStore(client *firestore.Client, cols gcp.Collections) *FirestoreStore {
	return &FirestoreStore{client: client, cols: cols, now: time.Now}
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error { return s.client.Close() }

func notFound(err error) bool { return status.Code(err) == codes.NotFound }

// --- reference documents ---

// FindReferenceByHash returns the ID of a completed reference with the given file hash.
func (s *FirestoreStore) FindReferenceByHash(ctx context.Context, fileHash string) (string, bool, error) {
	docs, err := s.client.Collection(s.cols.References).
		Where("fileHash", "==", fileHash).
		Where("processing_status", "==", models.ProcessingStatusCompleted).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// CreateReference adds a reference record and returns its ID.
func (s *FirestoreStore) CreateReference(ctx context.Context, ref models.ReferenceDocument) (string, error) {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = s.now()
	}
	docRef, _, err := s.client.Collection(s.cols.References).Add(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to create reference document: %w", err)
	}
	return docRef.ID, nil
}

// CompleteReference overwrites a reference record with its processed content.
func (s *FirestoreStore) CompleteReference(ctx context.Context, id string, ref models.ReferenceDocument) error {
	ref.ProcessingStatus = models.ProcessingStatusCompleted
	if _, err := s.client.Collection(s.cols.References).Doc(id).Set(ctx, ref); err != nil {
		return fmt.Errorf("failed to store reference document %s: %w", id, err)
	}
	return nil
}

// FailReference marks a reference record as failed.
func (s *FirestoreStore) FailReference(ctx context.Context, id, details string) error {
	_, err := s.client.Collection(s.cols.References).Doc(id).Update(ctx, []firestore.Update{
		{Path: "processing_status", Value: models.ProcessingStatusFailed},
		{Path: "errorDetails", Value: details},
		{Path: "processedAt", Value: s.now()},
	})
	if err != nil {
		return fmt.Errorf("failed to mark reference document %s failed: %w", id, err)
	}
	return nil
}

// ReferencesForRequest returns the completed references uploaded with a request.
func (s *FirestoreStore) ReferencesForRequest(ctx context.Context, requestID string) ([]models.ReferenceDocument, error) {
	it := s.client.Collection(s.cols.References).
		Where("requestId", "==", requestID).
		Where("processing_status", "==", models.ProcessingStatusCompleted).
		Documents(ctx)
	defer it.Stop()

	var refs []models.ReferenceDocument
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list references of request %s: %w", requestID, err)
		}
		var ref models.ReferenceDocument
		if err := snap.DataTo(&ref); err != nil {
			return nil, fmt.Errorf("failed to decode reference %s: %w", snap.Ref.ID, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// --- procurement requests ---

// CreateRequest stores a request and its generation commands atomically.
func (s *FirestoreStore) CreateRequest(ctx context.Context, id string, req models.ProcurementRequest, commands map[string]models.GenerationCommand) error {
	now := s.now()
	req.CreatedAt, req.UpdatedAt = now, now

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.client.Collection(s.cols.Requests).Doc(id), req); err != nil {
			return err
		}
		for cmdID, cmd := range commands {
			cmd.CreatedAt = now
			if err := tx.Create(s.client.Collection(s.cols.Commands).Doc(cmdID), cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create request %s: %w", id, err)
	}
	return nil
}

// Request loads a procurement request.
func (s *FirestoreStore) Request(ctx context.Context, id string) (*models.ProcurementRequest, error) {
	snap, err := s.client.Collection(s.cols.Requests).Doc(id).Get(ctx)
	if notFound(err) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	var req models.ProcurementRequest
	if err := snap.DataTo(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", id, err)
	}
	return &req, nil
}

// SetRequestStatus updates a request's status and error details.
func (s *FirestoreStore) SetRequestStatus(ctx context.Context, id, status, details string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: s.now()},
	}
	if details != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: details})
	}
	if _, err := s.client.Collection(s.cols.Requests).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update request %s to %s: %w", id, status, err)
	}
	return nil
}

// MarkRequestGenerated moves a queued request to generated. It reports false
// when the request was not queued, so only one caller wins the transition.
func (s *FirestoreStore) MarkRequestGenerated(ctx context.Context, id string) (bool, error) {
	ref := s.client.Collection(s.cols.Requests).Doc(id)
	var moved bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		moved = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if current != models.RequestStatusQueued {
			return nil
		}
		moved = true
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.RequestStatusGenerated},
			{Path: "updatedAt", Value: s.now()},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark request %s generated: %w", id, err)
	}
	return moved, nil
}

// SetRequestBundle records the published bundle and marks the request published.
func (s *FirestoreStore) SetRequestBundle(ctx context.Context, id, bundleURI string) error {
	_, err := s.client.Collection(s.cols.Requests).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: models.RequestStatusPublished},
		{Path: "bundleUri", Value: bundleURI},
		{Path: "updatedAt", Value: s.now()},
	})
	if err != nil {
		return fmt.Errorf("failed to record bundle for request %s: %w", id, err)
	}
	return nil
}

// --- generation commands ---

// PendingCommandIDs returns up to limit pending commands, oldest first.
func (s *FirestoreStore) PendingCommandIDs(ctx context.Context, limit int) ([]string, error) {
	docs, err := s.client.Collection(s.cols.Commands).
		Where("status", "==", models.CommandStatusPending).
		OrderBy("createdAt", firestore.Asc).
		Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query pending commands: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.Ref.ID)
	}
	return ids, nil
}

// ClaimCommand moves a pending command to running for workerID. It reports
// false when another worker claimed it first.
func (s *FirestoreStore) ClaimCommand(ctx context.Context, id, workerID string) (*models.GenerationCommand, bool, error) {
	ref := s.client.Collection(s.cols.Commands).Doc(id)
	var claimed *models.GenerationCommand

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = nil
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var cmd models.GenerationCommand
		if err := snap.DataTo(&cmd); err != nil {
			return err
		}
		if cmd.Status != models.CommandStatusPending {
			return nil
		}
		cmd.Status = models.CommandStatusRunning
		cmd.WorkerID = workerID
		cmd.Attempts++
		cmd.StartedAt = s.now()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: cmd.Status},
			{Path: "workerId", Value: cmd.WorkerID},
			{Path: "attempts", Value: cmd.Attempts},
			{Path: "startedAt", Value: cmd.StartedAt},
		}); err != nil {
			return err
		}
		claimed = &cmd
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim command %s: %w", id, err)
	}
	return claimed, claimed != nil, nil
}

// FinishCommand records the outcome of a command run.
func (s *FirestoreStore) FinishCommand(ctx context.Context, id, status, errMsg, outputURI string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "error", Value: errMsg},
		{Path: "finishedAt", Value: s.now()},
	}
	if outputURI != "" {
		updates = append(updates, firestore.Update{Path: "outputUri", Value: outputURI})
	}
	if _, err := s.client.Collection(s.cols.Commands).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update command %s to %s: %w", id, status, err)
	}
	return nil
}

// ExpireStaleClaims releases running commands claimed before cutoff. A
// command with attempts left goes back to pending; one without is failed.
// Each command is rechecked inside its own transaction, so a worker that
// finishes in the meantime keeps its result.
func (s *FirestoreStore) ExpireStaleClaims(ctx context.Context, cutoff time.Time, maxAttempts int) ([]ExpiredClaim, error) {
	docs, err := s.client.Collection(s.cols.Commands).
		Where("status", "==", models.CommandStatusRunning).
		Where("startedAt", "<", cutoff).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query stale commands: %w", err)
	}

	var expired []ExpiredClaim
	for _, d := range docs {
		ref := d.Ref
		var claim *ExpiredClaim
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			claim = nil
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			var cmd models.GenerationCommand
			if err := snap.DataTo(&cmd); err != nil {
				return err
			}
			if cmd.Status != models.CommandStatusRunning || !cmd.StartedAt.Before(cutoff) {
				return nil
			}
			updates := expireClaim(&cmd, maxAttempts, s.now())
			if err := tx.Update(ref, updates); err != nil {
				return err
			}
			claim = &ExpiredClaim{ID: ref.ID, Command: cmd}
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("failed to expire command %s: %w", ref.ID, err)
		}
		if claim != nil {
			expired = append(expired, *claim)
		}
	}
	return expired, nil
}

// expireClaim moves cmd out of running and returns the matching field updates.
func expireClaim(cmd *models.GenerationCommand, maxAttempts int, now time.Time) []firestore.Update {
	cmd.Status = models.CommandStatusPending
	if cmd.Attempts >= maxAttempts {
		cmd.Status = models.CommandStatusFailed
	}
	cmd.Error = fmt.Sprintf("%s (worker %s, started %s)", ErrClaimExpired, cmd.WorkerID, cmd.StartedAt.UTC().Format(time.RFC3339))
	cmd.FinishedAt = now
	return []firestore.Update{
		{Path: "status", Value: cmd.Status},
		{Path: "error", Value: cmd.Error},
		{Path: "finishedAt", Value: cmd.FinishedAt},
	}
}

// --- generated documents ---

// SaveGeneratedDocument writes (or replaces) a generated document.
func (s *FirestoreStore) SaveGeneratedDocument(ctx context.Context, id string, doc models.GeneratedDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	if _, err := s.client.Collection(s.cols.Generated).Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store generated document %s: %w", id, err)
	}
	return nil
}

// GeneratedDocuments returns every generated document of a request.
func (s *FirestoreStore) GeneratedDocuments(ctx context.Context, requestID string) ([]models.GeneratedDocument, error) {
	docs, err := s.client.Collection(s.cols.Generated).Where("requestId", "==", requestID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list generated documents of request %s: %w", requestID, err)
	}
	out := make([]models.GeneratedDocument, 0, len(docs))
	for _, d := range docs {
		var g models.GeneratedDocument
		if err := d.DataTo(&g); err != nil {
			return nil, fmt.Errorf("failed to decode generated document %s: %w", d.Ref.ID, err)
		}
		out = append(out, g)
	}
	return out, nil
}
