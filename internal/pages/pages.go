// Package pages archives raw fetched pages so extraction regressions can
// be replayed against the HTML that produced them.
package pages

import "context"

// Noop discards pages. It is used when archiving is disabled.
type Noop struct{}

// NewNoop creates a page archive that drops everything.
func NewNoop() *Noop {
	return &Noop{}
}

// PutObject ignores the payload and returns a pseudo URI.
func (Noop) PutObject(_ context.Context, path string, _ string, _ []byte) (string, error) {
	return "noop://" + path, nil
}
