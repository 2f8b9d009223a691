package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/Lllllllleong/vergabeflow/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Limits on the request form.
const (
	MaxTitleLength       = 200
	MinDescriptionLength = 20
	MaxDescriptionLength = 20000
	MaxUploadFiles       = 20

	maxFormMemory = 32 << 20
	maxBodyBytes  = MaxUploadFiles*docproc.MaxFileSize + 1<<20
)

// IntakeStore is the part of the record store used by request intake.
type IntakeStore interface {
	CreateReference(ctx context.Context, ref models.ReferenceDocument) (string, error)
	CreateRequest(ctx context.Context, id string, req models.ProcurementRequest, commands map[string]models.GenerationCommand) error
}

// IntakeFunction accepts a procurement request with its reference PDFs,
// classifies the references and queues document generation.
type IntakeFunction struct {
	store     IntakeStore
	processor *docproc.Processor
	metrics   *metrics.Metrics
	policy    *bluemonday.Policy
	newID     func() string
	now       func() time.Time
}

// NewIntake creates an IntakeFunction from the environment.
func NewIntake(ctx context.Context) (*IntakeFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	processor, err := ProcessorFromEnv(slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("Request intake logic initialized.")
	return NewIntakeWith(NewFirestoreStore(firestoreClient, gcp.CollectionsFromEnv()), processor, nil), nil
}

// NewIntakeWith wires an IntakeFunction from its parts.
func NewIntakeWith(store IntakeStore, processor *docproc.Processor, m *metrics.Metrics) *IntakeFunction {
	return &IntakeFunction{
		store:     store,
		processor: processor,
		metrics:   m,
		policy:    bluemonday.StrictPolicy(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

// ServeHTTP handles a multipart POST of title, description, budget, deadline
// and files.
func (f *IntakeFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Methode nicht erlaubt"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		slog.Warn("Could not parse multipart form", "error", err)
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Ungültiges Formular"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := f.parseRequest(r.MultipartForm)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	uploads, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		var ie *inputError
		if errors.As(err, &ie) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("Failed to read uploaded files", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Dateien konnten nicht gelesen werden"})
		return
	}

	res, err := f.Process(r.Context(), req, uploads)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Anfrage konnte nicht gespeichert werden"})
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Process classifies the uploads, stores the references and creates the
// request together with one generation command per document type.
func (f *IntakeFunction) Process(ctx context.Context, req models.ProcurementRequest, uploads []docproc.UploadFile) (*models.IntakeResponse, error) {
	requestID := f.newID()
	logCtx := slog.With("requestId", requestID)
	logCtx.Info("Starting request intake.", "fileCount", len(uploads))

	report := f.processor.ProcessFiles(ctx, uploads, func(p docproc.Progress) {
		logCtx.Info("Processing reference files.", "current", p.Current, "total", p.Total, "filename", p.Filename, "status", p.Status)
	})
	f.metrics.ObserveBatch(report)

	res := &models.IntakeResponse{
		RequestID: requestID,
		Status:    models.RequestStatusQueued,
		Documents: make([]models.IntakeDocument, 0, len(report.Results)),
		Errors:    append([]docproc.FileError{}, report.Errors...),
	}
	for _, fe := range report.Errors {
		logCtx.Warn("Reference file rejected.", "filename", fe.Filename, "kind", docproc.FailureKind(fe.Err), "error", fe.Error)
	}

	for _, doc := range report.Results {
		ref, err := models.NewReferenceDocument(doc)
		if err != nil {
			logCtx.Error("Failed to shape reference record", "filename", doc.Filename, "error", err)
			return nil, err
		}
		ref.RequestID = requestID
		ref.Source = "upload"
		ref.CreatedAt = f.now()
		id, err := f.store.CreateReference(ctx, ref)
		if err != nil {
			logCtx.Error("Failed to store reference document", "filename", doc.Filename, "error", err)
			return nil, err
		}
		res.Documents = append(res.Documents, models.IntakeDocument{
			ID:           id,
			Filename:     doc.Filename,
			DocumentType: string(doc.DocumentType),
			Confidence:   doc.Confidence,
			Excerpt:      doc.Excerpt,
		})
	}

	req.Status = models.RequestStatusQueued
	req.ReferenceCount = len(res.Documents)
	commands := make(map[string]models.GenerationCommand, len(docproc.Categories()))
	for _, docType := range docproc.Categories() {
		commands[models.CommandID(requestID, docType)] = models.GenerationCommand{
			RequestID:    requestID,
			DocumentType: string(docType),
			Status:       models.CommandStatusPending,
		}
	}
	if err := f.store.CreateRequest(ctx, requestID, req, commands); err != nil {
		logCtx.Error("Failed to create request", "error", err)
		return nil, err
	}

	logCtx.Info("Request queued for generation.", "references", len(res.Documents), "rejected", len(res.Errors))
	return res, nil
}

func (f *IntakeFunction) parseRequest(form *multipart.Form) (models.ProcurementRequest, error) {
	req := models.ProcurementRequest{
		Title:       f.clean(formValue(form, "title")),
		Description: f.clean(formValue(form, "description")),
		Budget:      f.clean(formValue(form, "budget")),
		Deadline:    f.clean(formValue(form, "deadline")),
	}
	if n := utf8.RuneCountInString(req.Title); n == 0 || n > MaxTitleLength {
		return req, &inputError{fmt.Sprintf("Titel muss zwischen 1 und %d Zeichen lang sein", MaxTitleLength)}
	}
	if n := utf8.RuneCountInString(req.Description); n < MinDescriptionLength || n > MaxDescriptionLength {
		return req, &inputError{fmt.Sprintf("Beschreibung muss zwischen %d und %d Zeichen lang sein", MinDescriptionLength, MaxDescriptionLength)}
	}
	return req, nil
}

// clean removes all markup from user input.
func (f *IntakeFunction) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(f.policy.Sanitize(s)))
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// readUploads loads the uploaded files. Oversized files are not read; the
// pipeline rejects them from their declared size.
func readUploads(headers []*multipart.FileHeader) ([]docproc.UploadFile, error) {
	if len(headers) > MaxUploadFiles {
		return nil, &inputError{fmt.Sprintf("Maximal %d Dateien erlaubt", MaxUploadFiles)}
	}
	uploads := make([]docproc.UploadFile, 0, len(headers))
	for _, h := range headers {
		up := docproc.UploadFile{UploadCandidate: docproc.UploadCandidate{
			Name:     h.Filename,
			Size:     h.Size,
			MIMEType: h.Header.Get("Content-Type"),
		}}
		if h.Size <= docproc.MaxFileSize {
			file, err := h.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open upload %s: %w", h.Filename, err)
			}
			up.Data, err = io.ReadAll(io.LimitReader(file, docproc.MaxFileSize+1))
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read upload %s: %w", h.Filename, err)
			}
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
