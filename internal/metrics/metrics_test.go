package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	menuRefreshTotal = nil
	menuStrategyAttemptsTotal = nil
	menuItemsExtractedTotal = nil
	menuFetchDurationSeconds = nil
	menuRobotsFallbackTotal = nil
	menuSnapshotItems = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if menuRefreshTotal == nil || menuStrategyAttemptsTotal == nil ||
		menuItemsExtractedTotal == nil || menuFetchDurationSeconds == nil ||
		menuRobotsFallbackTotal == nil || menuSnapshotItems == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveRefresh("api", "ok")
	if val := testutil.ToFloat64(menuRefreshTotal.WithLabelValues("api", "ok")); val != 1 {
		t.Errorf("Expected menuRefreshTotal to be 1, got %f", val)
	}

	ObserveStrategyAttempt("textblock", "empty")
	if val := testutil.ToFloat64(menuStrategyAttemptsTotal.WithLabelValues("textblock", "empty")); val != 1 {
		t.Errorf("Expected menuStrategyAttemptsTotal to be 1, got %f", val)
	}

	ObserveItemsExtracted("vegi", 2)
	ObserveItemsExtracted("hit", 0) // zero counts are not recorded
	if val := testutil.ToFloat64(menuItemsExtractedTotal.WithLabelValues("vegi")); val != 2 {
		t.Errorf("Expected menuItemsExtractedTotal to be 2, got %f", val)
	}
	if val := testutil.ToFloat64(menuItemsExtractedTotal.WithLabelValues("hit")); val != 0 {
		t.Errorf("Expected menuItemsExtractedTotal for hit to stay 0, got %f", val)
	}

	SetSnapshotItems(3)
	if val := testutil.ToFloat64(menuSnapshotItems); val != 3 {
		t.Errorf("Expected menuSnapshotItems to be 3, got %f", val)
	}

	ObserveFetch("static", 120*time.Millisecond)
	if val := testutil.CollectAndCount(menuFetchDurationSeconds); val <= 0 {
		t.Errorf("Expected menuFetchDurationSeconds to be observed, got %d", val)
	}

	ObserveRobotsFallback()
	if val := testutil.ToFloat64(menuRobotsFallbackTotal); val != 1 {
		t.Errorf("Expected menuRobotsFallbackTotal to be 1, got %f", val)
	}
}
