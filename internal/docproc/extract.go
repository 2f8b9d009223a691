package docproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// MaxPages is the number of pages read per document; later pages are
	// never opened.
	MaxPages = 100

	// DefaultExtractionTimeout bounds one Extract call.
	DefaultExtractionTimeout = 30 * time.Second
)

// OpenOptions is the security posture requested from an Engine.
type OpenOptions struct {
	DisableScripts   bool
	DisableAutoFetch bool
}

// Engine opens PDF documents. Implementations must honour OpenOptions.
type Engine interface {
	Open(data []byte, opts OpenOptions) (Handle, error)
}

// Handle is an opened PDF document.
type Handle interface {
	PageCount() int
	Page(n int) (Page, error) // 1-based
	Release()
}

// Page is a single PDF page.
type Page interface {
	TextRuns() ([]string, error)
	Release()
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	Engine  Engine
	Timeout time.Duration
	Logger  *slog.Logger
}

func (c *ExtractorConfig) defaults() {
	if c.Engine == nil {
		c.Engine = NewPDFEngine()
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultExtractionTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor pulls plain text out of PDF bytes.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an Extractor, filling unset config with defaults.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

type extractOutcome struct {
	doc *ExtractedDocument
	err error
}

// Extract reads up to MaxPages pages of text. It fails with an
// *ExtractionError of kind Timeout, EmptyDocument or ParseError.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (*ExtractedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	done := make(chan extractOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractOutcome{err: &ExtractionError{Kind: ParseError, Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		doc, err := e.extract(ctx, name, data)
		done <- extractOutcome{doc: doc, err: err}
	}()

	select {
	case out := <-done:
		return out.doc, out.err
	case <-ctx.Done():
		return nil, contextError(ctx.Err())
	}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExtractionError{Kind: Timeout, Err: err}
	}
	return &ExtractionError{Kind: ParseError, Err: err}
}

func (e *Extractor) extract(ctx context.Context, name string, data []byte) (*ExtractedDocument, error) {
	logCtx := e.cfg.Logger.With("file", name)

	handle, err := e.cfg.Engine.Open(data, OpenOptions{DisableScripts: true, DisableAutoFetch: true})
	if err != nil {
		return nil, &ExtractionError{Kind: ParseError, Err: err}
	}
	defer handle.Release()

	total := handle.PageCount()
	pages := min(total, MaxPages)
	if total > MaxPages {
		logCtx.Info("PDF exceeds page cap, remaining pages ignored", "pageCount", total, "maxPages", MaxPages)
	}

	pageTexts := make([]string, 0, pages)
	for n := 1; n <= pages; n++ {
		if ctx.Err() != nil {
			return nil, contextError(ctx.Err())
		}
		text, err := readPage(handle, n)
		if err != nil {
			logCtx.Warn("Skipping unreadable PDF page", "page", n, "error", err)
			continue
		}
		pageTexts = append(pageTexts, text)
	}

	rawText := strings.Join(pageTexts, "\n\n")
	if strings.TrimSpace(rawText) == "" {
		return nil, &ExtractionError{Kind: EmptyDocument}
	}

	logCtx.Debug("PDF text extracted", "pages", pages, "chars", len(rawText))
	return &ExtractedDocument{
		SourceName: name,
		RawText:    rawText,
		PageCount:  pages,
	}, nil
}

// readPage returns the page's non-blank text runs joined by single spaces.
func readPage(handle Handle, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: panic: %v", n, r)
		}
	}()

	page, err := handle.Page(n)
	if err != nil {
		return "", err
	}
	defer page.Release()

	runs, err := page.TextRuns()
	if err != nil {
		return "", err
	}
	kept := make([]string, 0, len(runs))
	for _, run := range runs {
		if strings.TrimSpace(run) != "" {
			kept = append(kept, run)
		}
	}
	return strings.Join(kept, " "), nil
}
