package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lunchbot/menuwatch/internal/menu"
)

func TestLatestBeforeFirstPut(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.Latest(context.Background())
	if !errors.Is(err, menu.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestPutLastWriterWins(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	first := menu.Snapshot{
		ID:             "one",
		Items:          []menu.Item{{Title: "Fischfilet", Category: menu.CategoryMenu}},
		FetchedAt:      time.Unix(1700000000, 0).UTC(),
		SourceStrategy: menu.StrategyAPI,
	}
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second := menu.Snapshot{
		ID:             "two",
		Items:          []menu.Item{},
		FetchedAt:      time.Unix(1700003600, 0).UTC(),
		SourceStrategy: menu.StrategyNone,
	}
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != "two" || got.SourceStrategy != menu.StrategyNone {
		t.Fatalf("expected the empty snapshot to supersede, got %+v", got)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(got.Items))
	}
}

func TestLatestReturnsCopy(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	snap := menu.Snapshot{
		ID:    "one",
		Items: []menu.Item{{Title: "Fischfilet", Category: menu.CategoryMenu}},
	}
	if err := store.Put(ctx, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	got.Items[0].Title = "mutated"

	again, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if again.Items[0].Title != "Fischfilet" {
		t.Fatalf("expected stored snapshot to be immutable, got %q", again.Items[0].Title)
	}
}
