package docproc

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Progress statuses reported to a ProgressFunc.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// ErrorKindProcessing tags every FileError produced by a batch.
const ErrorKindProcessing = "processing_error"

// Progress is reported before each file and once at the end of a batch.
type Progress struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
}

// ProgressFunc receives batch progress. Calls are serialized.
type ProgressFunc func(Progress)

// FileError describes one file that failed somewhere in the pipeline.
// Err keeps the typed cause for callers that want to inspect it.
type FileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Kind     string `json:"kind"`
	Err      error  `json:"-"`
}

// BatchReport is the result of ProcessFiles. Results keep input order.
type BatchReport struct {
	Results []ProcessedDocument `json:"results"`
	Errors  []FileError         `json:"errors"`
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Extractor  *Extractor
	Classifier *Classifier

	// Concurrency is the number of files processed at once. Values below 2
	// process files one after another.
	Concurrency int

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *ProcessorConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Extractor == nil {
		c.Extractor = NewExtractor(ExtractorConfig{Logger: c.Logger})
	}
	if c.Classifier == nil {
		c.Classifier = NewClassifier(DefaultClassifierOptions())
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Processor runs the validate → extract → classify → sanitize → excerpt
// pipeline over uploaded files.
type Processor struct {
	cfg ProcessorConfig
}

// NewProcessor creates a Processor, filling unset config with defaults.
func NewProcessor(cfg ProcessorConfig) *Processor {
	cfg.defaults()
	return &Processor{cfg: cfg}
}

// ProcessFile runs the full pipeline for one file.
func (p *Processor) ProcessFile(ctx context.Context, f UploadFile) (*ProcessedDocument, error) {
	if err := Validate(f.UploadCandidate); err != nil {
		return nil, err
	}

	extracted, err := p.cfg.Extractor.Extract(ctx, f.Name, f.Data)
	if err != nil {
		return nil, err
	}

	classification := p.cfg.Classifier.Classify(f.Name, extracted.RawText)
	text := Sanitize(extracted.RawText)

	pageCount := extracted.PageCount
	if pageCount <= 0 {
		pageCount = EstimatePageCount(text)
	}

	return &ProcessedDocument{
		Filename:      f.Name,
		FileSize:      f.Size,
		DocumentType:  classification.Category,
		Confidence:    classification.Confidence,
		SanitizedText: text,
		Excerpt:       Excerpt(text),
		ProcessedAt:   p.cfg.Now(),
		Metadata: DocumentMetadata{
			PageCount:      pageCount,
			WordCount:      len(strings.Fields(text)),
			CharacterCount: utf8.RuneCountInString(text),
		},
		Scores: classification.Scores,
	}, nil
}

type fileOutcome struct {
	doc *ProcessedDocument
	err error
}

// ProcessFiles processes every file and reports per-file outcomes. A failing
// file never stops the batch. onProgress may be nil.
func (p *Processor) ProcessFiles(ctx context.Context, files []UploadFile, onProgress ProgressFunc) BatchReport {
	total := len(files)
	outcomes := make([]fileOutcome, total)

	var mu sync.Mutex
	started := 0
	report := func(filename string) {
		mu.Lock()
		defer mu.Unlock()
		started++
		if onProgress != nil {
			onProgress(Progress{Current: started, Total: total, Filename: filename, Status: StatusProcessing})
		}
	}

	run := func(i int) {
		f := files[i]
		report(f.Name)
		doc, err := p.ProcessFile(ctx, f)
		if err != nil {
			p.cfg.Logger.Warn("File processing failed", "file", f.Name, "error", err)
		}
		outcomes[i] = fileOutcome{doc: doc, err: err}
	}

	if p.cfg.Concurrency > 1 {
		var eg errgroup.Group
		eg.SetLimit(p.cfg.Concurrency)
		for i := range files {
			eg.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for i := range files {
			run(i)
		}
	}

	out := BatchReport{
		Results: make([]ProcessedDocument, 0, total),
		Errors:  []FileError{},
	}
	for i, o := range outcomes {
		if o.err != nil {
			out.Errors = append(out.Errors, FileError{
				Filename: files[i].Name,
				Error:    o.err.Error(),
				Kind:     ErrorKindProcessing,
				Err:      o.err,
			})
			continue
		}
		out.Results = append(out.Results, *o.doc)
	}

	if onProgress != nil {
		onProgress(Progress{Current: total, Total: total, Status: StatusCompleted})
	}
	return out
}
