package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/Lllllllleong/vergabeflow/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CommandStore is the part of the record store used by the command poller.
type CommandStore interface {
	PendingCommandIDs(ctx context.Context, limit int) ([]string, error)
	ClaimCommand(ctx context.Context, id, workerID string) (*models.GenerationCommand, bool, error)
	FinishCommand(ctx context.Context, id, status, errMsg, outputURI string) error
	Request(ctx context.Context, id string) (*models.ProcurementRequest, error)
	ReferencesForRequest(ctx context.Context, requestID string) ([]models.ReferenceDocument, error)
	SaveGeneratedDocument(ctx context.Context, id string, doc models.GeneratedDocument) error
	GeneratedDocuments(ctx context.Context, requestID string) ([]models.GeneratedDocument, error)
	SetRequestStatus(ctx context.Context, id, status, details string) error
	MarkRequestGenerated(ctx context.Context, id string) (bool, error)
	ExpireStaleClaims(ctx context.Context, cutoff time.Time, maxAttempts int) ([]ExpiredClaim, error)
}

// ExpiredClaim is a command taken back from a worker that never finished it.
// Command holds the state after expiry.
type ExpiredClaim struct {
	ID      string
	Command models.GenerationCommand
}

// BlobWriter stores a text object and returns its URI.
type BlobWriter interface {
	Save(ctx context.Context, objectName, content string) (string, error)
}

// WorkflowTrigger starts a workflow execution.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, payload any) (string, error)
}

// PollerConfig configures a CommandPoller.
type PollerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	WorkerID    string

	// StaleAfter is how long a command may stay running before another
	// worker takes it back.
	StaleAfter time.Duration
}

// DefaultStaleAfter leaves the CLI backend its full timeout plus slack for
// the writes that follow generation.
const DefaultStaleAfter = DefaultCLITimeout + 5*time.Minute

// PollerConfigFromEnv reads POLL_INTERVAL, POLL_BATCH_SIZE, COMMAND_MAX_ATTEMPTS
// and COMMAND_STALE_AFTER.
func PollerConfigFromEnv() (PollerConfig, error) {
	var cfg PollerConfig
	var err error
	if cfg.Interval, err = gcp.GetEnvDuration("POLL_INTERVAL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.BatchSize, err = gcp.GetEnvInt("POLL_BATCH_SIZE", 3); err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts, err = gcp.GetEnvInt("COMMAND_MAX_ATTEMPTS", 3); err != nil {
		return cfg, err
	}
	if cfg.StaleAfter, err = gcp.GetEnvDuration("COMMAND_STALE_AFTER", DefaultStaleAfter); err != nil {
		return cfg, err
	}
	cfg.WorkerID = gcp.GetEnv("WORKER_ID", "")
	return cfg, nil
}

func (c *PollerConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize < 1 {
		c.BatchSize = 3
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.WorkerID == "" {
		host, _ := os.Hostname()
		c.WorkerID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
}

// CommandPoller claims pending generation commands and runs them against a
// Generator.
type CommandPoller struct {
	cfg      PollerConfig
	store    CommandStore
	gen      Generator
	blobs    BlobWriter
	workflow WorkflowTrigger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCommandPoller creates a poller. workflow and m may be nil.
func NewCommandPoller(cfg PollerConfig, store CommandStore, gen Generator, blobs BlobWriter, workflow WorkflowTrigger, m *metrics.Metrics) *CommandPoller {
	cfg.defaults()
	return &CommandPoller{cfg: cfg, store: store, gen: gen, blobs: blobs, workflow: workflow, metrics: m, now: time.Now}
}

// Run polls until ctx is cancelled. Commands already claimed run to
// completion before Run returns.
func (p *CommandPoller) Run(ctx context.Context) error {
	logCtx := slog.With("workerId", p.cfg.WorkerID)
	logCtx.Info("Command poller started.", "interval", p.cfg.Interval.String(), "batchSize", p.cfg.BatchSize)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.PollOnce(ctx); err != nil {
			logCtx.Error("Polling failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logCtx.Info("Command poller stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce releases stale claims, then claims and runs one batch of pending
// commands and returns how many it ran.
func (p *CommandPoller) PollOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, nil
	}
	p.expireStaleClaims(ctx)

	ids, err := p.store.PendingCommandIDs(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	workCtx := context.WithoutCancel(ctx)
	ran := make([]bool, len(ids))
	var eg errgroup.Group
	eg.SetLimit(p.cfg.BatchSize)
	for i, id := range ids {
		eg.Go(func() error {
			ran[i] = p.runCommand(workCtx, id)
			return nil
		})
	}
	_ = eg.Wait()

	n := 0
	for _, ok := range ran {
		if ok {
			n++
		}
	}
	return n, nil
}

// expireStaleClaims takes back commands whose worker has been silent for
// longer than StaleAfter. Sweep errors are logged; polling goes on.
func (p *CommandPoller) expireStaleClaims(ctx context.Context) {
	logCtx := slog.With("workerId", p.cfg.WorkerID)
	cutoff := p.now().Add(-p.cfg.StaleAfter)

	expired, err := p.store.ExpireStaleClaims(ctx, cutoff, p.cfg.MaxAttempts)
	if err != nil {
		logCtx.Error("Failed to expire stale commands", "error", err)
	}
	for _, claim := range expired {
		cmd := claim.Command
		claimLog := logCtx.With("commandId", claim.ID, "requestId", cmd.RequestID, "documentType", cmd.DocumentType, "staleWorker", cmd.WorkerID)
		if cmd.Status == models.CommandStatusPending {
			claimLog.Warn("Stale command requeued.", "attempts", cmd.Attempts)
			continue
		}

		claimLog.Error("Stale command failed after all attempts.", "attempts", cmd.Attempts)
		p.metrics.CommandFinished(cmd.DocumentType, models.CommandStatusFailed, p.now().Sub(cmd.StartedAt))
		details := fmt.Sprintf("%s: %s", cmd.DocumentType, cmd.Error)
		if err := p.store.SetRequestStatus(ctx, cmd.RequestID, models.RequestStatusFailed, details); err != nil {
			claimLog.Error("CRITICAL: Failed to update request status to failed.", "updateError", err)
		}
	}
}

func (p *CommandPoller) runCommand(ctx context.Context, id string) bool {
	logCtx := slog.With("commandId", id, "workerId", p.cfg.WorkerID)

	cmd, ok, err := p.store.ClaimCommand(ctx, id, p.cfg.WorkerID)
	if err != nil {
		logCtx.Error("Failed to claim command", "error", err)
		return false
	}
	if !ok {
		logCtx.Debug("Command already claimed by another worker.")
		return false
	}
	logCtx = logCtx.With("requestId", cmd.RequestID, "documentType", cmd.DocumentType, "attempt", cmd.Attempts)
	logCtx.Info("Claimed generation command.")

	start := time.Now()
	uri, err := p.generate(ctx, logCtx, id, cmd)
	if err != nil {
		p.handleFailure(ctx, logCtx, id, cmd, err)
		p.metrics.CommandFinished(cmd.DocumentType, models.CommandStatusFailed, time.Since(start))
		return true
	}
	if err := p.store.FinishCommand(ctx, id, models.CommandStatusCompleted, "", uri); err != nil {
		logCtx.Error("Failed to mark command completed", "error", err)
		return true
	}
	p.metrics.CommandFinished(cmd.DocumentType, models.CommandStatusCompleted, time.Since(start))
	logCtx.Info("Generation command completed.", "outputUri", uri, "took", time.Since(start).String())

	p.completeRequest(ctx, logCtx, cmd.RequestID)
	return true
}

func (p *CommandPoller) generate(ctx context.Context, logCtx *slog.Logger, id string, cmd *models.GenerationCommand) (string, error) {
	docType := docproc.Category(cmd.DocumentType)
	req, err := p.store.Request(ctx, cmd.RequestID)
	if err != nil {
		return "", err
	}
	refs, err := p.store.ReferencesForRequest(ctx, cmd.RequestID)
	if err != nil {
		return "", err
	}
	prompt, err := BuildPrompt(*req, docType, refs)
	if err != nil {
		return "", err
	}

	raw, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	content, err := CleanModelOutput(raw)
	if err != nil {
		logCtx.Warn("Unusable model output", "error", err, "response", raw)
		return "", err
	}

	uri, err := p.blobs.Save(ctx, fmt.Sprintf("%s/%s.md", cmd.RequestID, cmd.DocumentType), content)
	if err != nil {
		return "", err
	}
	err = p.store.SaveGeneratedDocument(ctx, id, models.GeneratedDocument{
		RequestID:    cmd.RequestID,
		DocumentType: cmd.DocumentType,
		Title:        models.DocumentTitle(docType),
		Content:      content,
		Model:        p.gen.Model(),
		GCSUri:       uri,
	})
	if err != nil {
		return "", err
	}
	return uri, nil
}

// handleFailure requeues the command while attempts remain, otherwise fails
// it together with its request.
func (p *CommandPoller) handleFailure(ctx context.Context, logCtx *slog.Logger, id string, cmd *models.GenerationCommand, cause error) {
	if cmd.Attempts < p.cfg.MaxAttempts {
		logCtx.Warn("Generation failed, will retry.", "error", cause, "maxAttempts", p.cfg.MaxAttempts)
		if err := p.store.FinishCommand(ctx, id, models.CommandStatusPending, cause.Error(), ""); err != nil {
			logCtx.Error("Failed to requeue command", "error", err)
		}
		return
	}

	logCtx.Error("Generation failed after all attempts.", "error", cause)
	if err := p.store.FinishCommand(ctx, id, models.CommandStatusFailed, cause.Error(), ""); err != nil {
		logCtx.Error("Failed to mark command failed", "error", err)
	}
	details := fmt.Sprintf("%s: %v", cmd.DocumentType, cause)
	if err := p.store.SetRequestStatus(ctx, cmd.RequestID, models.RequestStatusFailed, details); err != nil {
		logCtx.Error("CRITICAL: Failed to update request status to failed.", "updateError", err)
	}
}

// completeRequest triggers publication once every document type of the
// request has been generated.
func (p *CommandPoller) completeRequest(ctx context.Context, logCtx *slog.Logger, requestID string) {
	docs, err := p.store.GeneratedDocuments(ctx, requestID)
	if err != nil {
		logCtx.Error("Failed to list generated documents", "error", err)
		return
	}
	have := make(map[string]bool, len(docs))
	for _, d := range docs {
		have[d.DocumentType] = true
	}
	for _, docType := range docproc.Categories() {
		if !have[string(docType)] {
			return
		}
	}

	moved, err := p.store.MarkRequestGenerated(ctx, requestID)
	if err != nil {
		logCtx.Error("Failed to mark request generated", "error", err)
		return
	}
	if !moved {
		return
	}
	logCtx.Info("All documents generated.")

	if p.workflow == nil {
		logCtx.Warn("No publication workflow configured, skipping.")
		return
	}
	execution, err := p.workflow.Trigger(ctx, models.PublicationWorkflowArgs{RequestID: requestID})
	if err != nil {
		logCtx.Error("Failed to trigger publication workflow", "error", err)
		if err := p.store.SetRequestStatus(ctx, requestID, models.RequestStatusFailed, fmt.Sprintf("failed to trigger publication workflow: %v", err)); err != nil {
			logCtx.Error("CRITICAL: Failed to update request status to failed.", "updateError", err)
		}
		return
	}
	logCtx.Info("Publication workflow triggered.", "execution", execution)
}
