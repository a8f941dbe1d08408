// Package memory keeps the most recent archived pages in process memory.
package memory

import (
	"context"
	"sync"
)

// defaultCap bounds how many pages a development session accumulates.
const defaultCap = 32

// Page is one archived body.
type Page struct {
	Path        string
	ContentType string
	Body        []byte
}

// Archive is a bounded, insertion-ordered page store. When the cap is
// reached the oldest page falls out.
type Archive struct {
	mu    sync.Mutex
	limit int
	order []string
	pages map[string]Page
}

// New creates an archive bounded to defaultCap pages.
func New() *Archive {
	return NewWithCap(defaultCap)
}

// NewWithCap creates an archive holding at most limit pages. A
// non-positive limit falls back to the default.
func NewWithCap(limit int) *Archive {
	if limit <= 0 {
		limit = defaultCap
	}
	return &Archive{limit: limit, pages: make(map[string]Page)}
}

// PutObject keeps a copy of the body and returns a memory:// URI.
// Re-archiving a path refreshes its position in the eviction order.
func (a *Archive) PutObject(_ context.Context, path string, contentType string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.pages[path]; exists {
		a.forget(path)
	}
	for len(a.order) >= a.limit {
		a.forget(a.order[0])
	}
	a.order = append(a.order, path)
	a.pages[path] = Page{
		Path:        path,
		ContentType: contentType,
		Body:        append([]byte(nil), data...),
	}
	return "memory://" + path, nil
}

func (a *Archive) forget(path string) {
	delete(a.pages, path)
	for i, p := range a.order {
		if p == path {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// Get returns a copy of the stored page for a path.
func (a *Archive) Get(path string) (Page, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, ok := a.pages[path]
	if !ok {
		return Page{}, false
	}
	page.Body = append([]byte(nil), page.Body...)
	return page, true
}

// Len reports how many pages are held.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}
