package docproc

import (
	"errors"
	"sync"
	"time"
)

// fakeEngine serves pages from memory.
type fakeEngine struct {
	pages     []fakePage
	pageCount int // overrides len(pages) when > 0
	openErr   error

	mu       sync.Mutex
	opened   []int
	lastOpts OpenOptions
	released bool
}

type fakePage struct {
	runs  []string
	err   error
	panic bool
	delay time.Duration
}

func (e *fakeEngine) Open(_ []byte, opts OpenOptions) (Handle, error) {
	e.mu.Lock()
	e.lastOpts = opts
	e.mu.Unlock()
	if e.openErr != nil {
		return nil, e.openErr
	}
	return &fakeHandle{engine: e}, nil
}

func (e *fakeEngine) openedPages() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.opened...)
}

type fakeHandle struct {
	engine *fakeEngine
}

func (h *fakeHandle) PageCount() int {
	if h.engine.pageCount > 0 {
		return h.engine.pageCount
	}
	return len(h.engine.pages)
}

func (h *fakeHandle) Page(n int) (Page, error) {
	h.engine.mu.Lock()
	h.engine.opened = append(h.engine.opened, n)
	h.engine.mu.Unlock()
	if len(h.engine.pages) == 0 {
		return nil, errors.New("no pages")
	}
	// Documents longer than the configured pages repeat the last one.
	idx := min(n-1, len(h.engine.pages)-1)
	return &h.engine.pages[idx], nil
}

func (h *fakeHandle) Release() {
	h.engine.mu.Lock()
	h.engine.released = true
	h.engine.mu.Unlock()
}

func (p *fakePage) TextRuns() ([]string, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.panic {
		panic("corrupt content stream")
	}
	return p.runs, p.err
}

func (p *fakePage) Release() {}

func textPages(texts ...string) []fakePage {
	pages := make([]fakePage, len(texts))
	for i, t := range texts {
		pages[i] = fakePage{runs: []string{t}}
	}
	return pages
}
