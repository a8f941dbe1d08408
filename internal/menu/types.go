// Package menu defines core types shared across the extraction pipeline
// and its collaborators.
package menu

import (
	"net/http"
	"time"
)

// Category is the meal classification assigned to an extracted item.
type Category string

// Category values serialized in snapshots.
const (
	CategoryMenu    Category = "menu"
	CategoryVegi    Category = "vegi"
	CategoryHit     Category = "hit"
	CategoryUnknown Category = "unknown"
)

// CategoryOrder is the display order used when grouping items.
var CategoryOrder = []Category{CategoryMenu, CategoryVegi, CategoryHit, CategoryUnknown}

// Strategy identifies which extraction strategy produced a snapshot.
type Strategy string

// Strategy values in fallback order. StrategyNone marks a run where every
// strategy came back empty.
const (
	StrategyAPI       Strategy = "api"
	StrategyTextBlock Strategy = "textblock"
	StrategyDOMScan   Strategy = "domscan"
	StrategyPattern   Strategy = "pattern"
	StrategyNone      Strategy = "none"
)

// Item is a single classified menu entry.
type Item struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price,omitempty"`
	Category    Category `json:"category"`
}

// RawCandidate is an unclassified fragment produced by a strategy. It is
// discarded once classified or rejected and never persisted.
type RawCandidate struct {
	Title       string
	Description string
	Price       string
}

// Snapshot is the immutable result of one completed pipeline run. A new run
// supersedes the previous snapshot; snapshots are never mutated in place.
type Snapshot struct {
	ID             string    `json:"id"`
	Restaurant     string    `json:"restaurant,omitempty"`
	Location       string    `json:"location,omitempty"`
	URL            string    `json:"url,omitempty"`
	DisplayDate    string    `json:"displayDate,omitempty"`
	Items          []Item    `json:"items"`
	FetchedAt      time.Time `json:"fetchedAt"`
	SourceStrategy Strategy  `json:"sourceStrategy"`
}

// Empty reports whether the run found no items at all.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// FetchRequest captures everything needed to fetch the menu page.
type FetchRequest struct {
	URL         string
	Headers     http.Header
	UseHeadless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
