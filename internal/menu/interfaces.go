package menu

import (
	"context"
	"time"
)

// Fetcher fetches the menu page and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Prober attempts candidate JSON endpoints before any HTML parsing happens.
type Prober interface {
	Strategy() Strategy
	Probe(ctx context.Context) ([]RawCandidate, error)
}

// Extractor pulls raw candidates out of fetched page HTML. Implementations
// are pure parse steps; an empty result (not an error) tells the pipeline to
// try the next strategy.
type Extractor interface {
	Strategy() Strategy
	Extract(html string) ([]RawCandidate, error)
}

// Classifier assigns a category to item text and flags items that should be
// dropped entirely (breakfast, dessert, page noise).
type Classifier interface {
	Classify(text string) (Category, bool)
}

// SnapshotStore retains the most recent snapshot, last writer wins.
type SnapshotStore interface {
	Put(ctx context.Context, snap Snapshot) error
	Latest(ctx context.Context) (Snapshot, error)
}

// HistoryStore archives one snapshot per day for later lookup. Days lists
// archived days newest first, formatted YYYY-MM-DD.
type HistoryStore interface {
	Archive(ctx context.Context, snap Snapshot) error
	ByDate(ctx context.Context, day string) (Snapshot, error)
	Days(ctx context.Context, limit, offset int) ([]string, error)
}

// PageArchive writes raw fetched pages and returns a URI.
type PageArchive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes snapshot events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// HeadlessDetector decides whether a fetched page needs a browser render
// before the HTML strategies can see the menu.
type HeadlessDetector interface {
	ShouldRender(probe FetchResponse) bool
}

// Hasher names archived page bodies by content. Identical bodies must
// yield identical fingerprints.
type Hasher interface {
	Fingerprint(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces snapshot IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
