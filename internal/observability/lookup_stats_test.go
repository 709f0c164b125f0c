package observability

import (
	"sync"
	"testing"
	"time"
)

// TestLookupConcurrent tests concurrent Lookup calls for race conditions.
func TestLookupConcurrent(t *testing.T) {
	ls := NewLookupStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	lookupsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < lookupsPerGoroutine; j++ {
				ls.Lookup("id", true)
				ls.Lookup("status", false)
				ls.Lookup("owner", j%2 == 0)
			}
		}()
	}

	wg.Wait()

	top := ls.TopProperties(10)
	if len(top) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(top))
	}

	expectedFreq := int64(numGoroutines * lookupsPerGoroutine)
	for _, stat := range top {
		if stat.Frequency != expectedFreq {
			t.Errorf("expected frequency %d for %s, got %d", expectedFreq, stat.Property, stat.Frequency)
		}
		if stat.Hits+stat.Misses != stat.Frequency {
			t.Errorf("hits+misses != frequency for %s", stat.Property)
		}
	}

	owner, _ := ls.Get("owner")
	if owner.Hits != expectedFreq/2 {
		t.Errorf("expected %d owner hits, got %d", expectedFreq/2, owner.Hits)
	}
}

// TestTopPropertiesOrdering tests that TopProperties sorts by frequency.
func TestTopPropertiesOrdering(t *testing.T) {
	ls := NewLookupStats(1 * time.Hour)

	for i := 0; i < 10; i++ {
		ls.Lookup("id", true)
	}
	for i := 0; i < 5; i++ {
		ls.Lookup("status", true)
	}
	for i := 0; i < 20; i++ {
		ls.Lookup("owner", false)
	}

	top := ls.TopProperties(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(top))
	}
	if top[0].Property != "owner" || top[0].Frequency != 20 {
		t.Errorf("expected owner with 20, got %s with %d", top[0].Property, top[0].Frequency)
	}
	if top[1].Property != "id" || top[1].Frequency != 10 {
		t.Errorf("expected id with 10, got %s with %d", top[1].Property, top[1].Frequency)
	}

	if got := ls.TopProperties(0); len(got) != 0 {
		t.Errorf("expected empty result for n=0, got %d", len(got))
	}
}

// TestTopPropertiesReturnsCopies tests that callers cannot mutate the tracker.
func TestTopPropertiesReturnsCopies(t *testing.T) {
	ls := NewLookupStats(1 * time.Hour)
	ls.Lookup("id", true)

	top := ls.TopProperties(1)
	top[0].Frequency = 100

	again := ls.TopProperties(1)
	if again[0].Frequency != 1 {
		t.Errorf("expected frequency 1, got %d", again[0].Frequency)
	}
}

func TestIndexBuilt(t *testing.T) {
	ls := NewLookupStats(1 * time.Hour)
	ls.IndexBuilt("status", 100, 2*time.Millisecond)
	ls.IndexBuilt("status", 120, 3*time.Millisecond)

	stats, ok := ls.Get("status")
	if !ok {
		t.Fatal("expected stats for status")
	}
	if stats.Builds != 2 {
		t.Errorf("expected 2 builds, got %d", stats.Builds)
	}
	if stats.BuildTime != 5*time.Millisecond {
		t.Errorf("expected 5ms build time, got %v", stats.BuildTime)
	}
	if stats.Frequency != 0 {
		t.Errorf("builds should not count as lookups, got %d", stats.Frequency)
	}
}

// TestPrune tests that stale entries are removed.
func TestPrune(t *testing.T) {
	ls := NewLookupStats(50 * time.Millisecond)
	ls.Lookup("stale", true)

	time.Sleep(100 * time.Millisecond)
	ls.Lookup("fresh", true)
	ls.Prune()

	if _, ok := ls.Get("stale"); ok {
		t.Error("stale entry should have been pruned")
	}
	if _, ok := ls.Get("fresh"); !ok {
		t.Error("fresh entry should survive pruning")
	}
}
