package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/models"
)

// textEngine treats the uploaded bytes as the text of a one-page PDF.
type textEngine struct{}

func (textEngine) Open(data []byte, _ docproc.OpenOptions) (docproc.Handle, error) {
	if len(data) == 0 {
		return nil, errors.New("empty")
	}
	return textHandle(data), nil
}

type textHandle []byte

func (h textHandle) PageCount() int { return 1 }

func (h textHandle) Page(int) (docproc.Page, error) { return textPage(h), nil }

func (textHandle) Release() {}

type textPage []byte

func (p textPage) TextRuns() ([]string, error) { return []string{string(p)}, nil }

func (textPage) Release() {}

func newTestProcessor() *docproc.Processor {
	return docproc.NewProcessor(docproc.ProcessorConfig{
		Extractor: docproc.NewExtractor(docproc.ExtractorConfig{Engine: textEngine{}, Timeout: time.Second}),
	})
}

// memStore is an in-memory record store.
type memStore struct {
	mu         sync.Mutex
	seq        int
	references map[string]models.ReferenceDocument
	requests   map[string]models.ProcurementRequest
	commands   map[string]models.GenerationCommand
	generated  map[string]models.GeneratedDocument
	now        func() time.Time

	failCreateRequest error
	failExpire        error
}

func newMemStore() *memStore {
	return &memStore{
		references: map[string]models.ReferenceDocument{},
		requests:   map[string]models.ProcurementRequest{},
		commands:   map[string]models.GenerationCommand{},
		generated:  map[string]models.GeneratedDocument{},
		now:        time.Now,
	}
}

func (s *memStore) FindReferenceByHash(_ context.Context, fileHash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ref := range s.references {
		if ref.FileHash == fileHash && ref.ProcessingStatus == models.ProcessingStatusCompleted {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (s *memStore) CreateReference(_ context.Context, ref models.ReferenceDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("ref-%d", s.seq)
	s.references[id] = ref
	return id, nil
}

func (s *memStore) CompleteReference(_ context.Context, id string, ref models.ReferenceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref.ProcessingStatus = models.ProcessingStatusCompleted
	s.references[id] = ref
	return nil
}

func (s *memStore) FailReference(_ context.Context, id, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.references[id]
	ref.ProcessingStatus = models.ProcessingStatusFailed
	ref.ErrorDetails = details
	s.references[id] = ref
	return nil
}

func (s *memStore) ReferencesForRequest(_ context.Context, requestID string) ([]models.ReferenceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.references))
	for id := range s.references {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var refs []models.ReferenceDocument
	for _, id := range ids {
		if ref := s.references[id]; ref.RequestID == requestID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (s *memStore) CreateRequest(_ context.Context, id string, req models.ProcurementRequest, commands map[string]models.GenerationCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateRequest != nil {
		return s.failCreateRequest
	}
	s.requests[id] = req
	for cmdID, cmd := range commands {
		s.seq++
		cmd.CreatedAt = time.Unix(int64(s.seq), 0)
		s.commands[cmdID] = cmd
	}
	return nil
}

func (s *memStore) Request(_ context.Context, id string) (*models.ProcurementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return &req, nil
}

func (s *memStore) SetRequestStatus(_ context.Context, id, status, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.requests[id]
	req.Status = status
	if details != "" {
		req.ErrorDetails = details
	}
	s.requests[id] = req
	return nil
}

func (s *memStore) MarkRequestGenerated(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.requests[id]
	if req.Status != models.RequestStatusQueued {
		return false, nil
	}
	req.Status = models.RequestStatusGenerated
	s.requests[id] = req
	return true, nil
}

func (s *memStore) SetRequestBundle(_ context.Context, id, bundleURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.requests[id]
	req.Status = models.RequestStatusPublished
	req.BundleURI = bundleURI
	s.requests[id] = req
	return nil
}

func (s *memStore) PendingCommandIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, cmd := range s.commands {
		if cmd.Status == models.CommandStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.commands[ids[i]].CreatedAt.Before(s.commands[ids[j]].CreatedAt)
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) ClaimCommand(_ context.Context, id, workerID string) (*models.GenerationCommand, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.commands[id]
	if !ok || cmd.Status != models.CommandStatusPending {
		return nil, false, nil
	}
	cmd.Status = models.CommandStatusRunning
	cmd.WorkerID = workerID
	cmd.Attempts++
	cmd.StartedAt = s.now()
	s.commands[id] = cmd
	return &cmd, true, nil
}

func (s *memStore) FinishCommand(_ context.Context, id, status, errMsg, outputURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.commands[id]
	cmd.Status = status
	cmd.Error = errMsg
	if outputURI != "" {
		cmd.OutputURI = outputURI
	}
	s.commands[id] = cmd
	return nil
}

func (s *memStore) ExpireStaleClaims(_ context.Context, cutoff time.Time, maxAttempts int) ([]ExpiredClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failExpire != nil {
		return nil, s.failExpire
	}
	ids := make([]string, 0, len(s.commands))
	for id := range s.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var expired []ExpiredClaim
	for _, id := range ids {
		cmd := s.commands[id]
		if cmd.Status != models.CommandStatusRunning || !cmd.StartedAt.Before(cutoff) {
			continue
		}
		expireClaim(&cmd, maxAttempts, s.now())
		s.commands[id] = cmd
		expired = append(expired, ExpiredClaim{ID: id, Command: cmd})
	}
	return expired, nil
}

func (s *memStore) SaveGeneratedDocument(_ context.Context, id string, doc models.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[id] = doc
	return nil
}

func (s *memStore) GeneratedDocuments(_ context.Context, requestID string) ([]models.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []models.GeneratedDocument
	for _, d := range s.generated {
		if d.RequestID == requestID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *memStore) command(id string) models.GenerationCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[id]
}

func (s *memStore) request(id string) models.ProcurementRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

// memBlobs records saved objects.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (b *memBlobs) Save(_ context.Context, objectName, content string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	if b.objects == nil {
		b.objects = map[string]string{}
	}
	if _, exists := b.objects[objectName]; !exists {
		b.objects[objectName] = content
	}
	return "gs://test-bucket/" + objectName, nil
}

// scriptedGenerator answers prompts with a fixed function.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (g *scriptedGenerator) Model() string { return "test-model" }

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.answer(prompt)
}

// recordingWorkflow counts triggers.
type recordingWorkflow struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (w *recordingWorkflow) Trigger(_ context.Context, payload any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.payloads = append(w.payloads, payload)
	return fmt.Sprintf("executions/%d", len(w.payloads)), nil
}

func (w *recordingWorkflow) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}
