package docproc

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var errInsecureOpen = errors.New("pdf engine requires scripts and auto-fetch to be disabled")

// pdfEngine reads text with ledongthuc/pdf and takes the page count from
// pdfcpu. Neither library runs embedded JavaScript or dereferences remote
// resources, so both OpenOptions are satisfied by construction.
type pdfEngine struct{}

// NewPDFEngine returns the default Engine.
func NewPDFEngine() Engine {
	return pdfEngine{}
}

func (pdfEngine) Open(data []byte, opts OpenOptions) (h Handle, err error) {
	if !opts.DisableScripts || !opts.DisableAutoFetch {
		return nil, errInsecureOpen
	}
	if len(data) == 0 {
		return nil, errors.New("empty PDF content")
	}

	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("open pdf: panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pageCount, err := pdfcpuPageCount(data)
	if err != nil || pageCount <= 0 {
		pageCount = reader.NumPage()
	}
	return &pdfHandle{reader: reader, pageCount: pageCount}, nil
}

func pdfcpuPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

type pdfHandle struct {
	reader    *pdf.Reader
	pageCount int
}

func (h *pdfHandle) PageCount() int { return h.pageCount }

func (h *pdfHandle) Page(n int) (Page, error) {
	if h.reader == nil {
		return nil, errors.New("pdf handle released")
	}
	if n < 1 || n > h.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	p := h.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d has no page object", n)
	}
	return &pdfPage{page: p}, nil
}

func (h *pdfHandle) Release() { h.reader = nil }

type pdfPage struct {
	page pdf.Page
}

const (
	// A baseline shift beyond this fraction of the font size starts a new line.
	lineShiftRatio = 0.5
	// A horizontal gap beyond this fraction of the font size separates words.
	// TJ kerning used as word spacing is typically 0.2 to 0.3 em.
	wordGapRatio = 0.15
)

// TextRuns returns one run per text line, in content-stream order. Lines are
// told apart by baseline; a gap between two glyphs on the same line that is
// wider than wordGapRatio of the font size becomes a space.
func (p *pdfPage) TextRuns() ([]string, error) {
	var (
		runs      []string
		line      strings.Builder
		prev      pdf.Text
		started   bool
		lastSpace bool
	)
	flush := func() {
		if line.Len() > 0 {
			runs = append(runs, line.String())
			line.Reset()
		}
		lastSpace = false
	}

	for _, glyph := range p.page.Content().Text {
		// TJ arrays end in a synthetic newline glyph; geometry decides breaks.
		if glyph.S == "" || glyph.S == "\n" || glyph.S == "\r" {
			continue
		}
		if started {
			size := max(math.Abs(prev.FontSize), 1)
			switch {
			case math.Abs(glyph.Y-prev.Y) > lineShiftRatio*size:
				flush()
			case glyph.X-(prev.X+prev.W) > wordGapRatio*size && !lastSpace && glyph.S != " ":
				line.WriteByte(' ')
			}
		}
		line.WriteString(glyph.S)
		lastSpace = glyph.S == " "
		prev, started = glyph, true
	}
	flush()
	return runs, nil
}

func (p *pdfPage) Release() { p.page = pdf.Page{} }
