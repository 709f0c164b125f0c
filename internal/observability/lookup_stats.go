// Package observability tracks index usage for warm-up policies and exports it
// as Prometheus metrics.
package observability

import (
	"sort"
	"sync"
	"time"
)

// LookupStats tracks per-property lookup frequency and index build cost.
// It is safe for concurrent use and implements indexer.Observer.
type LookupStats struct {
	mu         sync.RWMutex
	properties map[string]*PropertyStats
	window     time.Duration
}

// PropertyStats holds statistics for one property.
type PropertyStats struct {
	Property  string
	Frequency int64
	Hits      int64
	Misses    int64
	Builds    int64
	BuildTime time.Duration
	LastSeen  time.Time
}

// NewLookupStats creates a new tracker.
// window: entries not seen for longer than this are dropped by Prune
func NewLookupStats(window time.Duration) *LookupStats {
	return &LookupStats{
		properties: make(map[string]*PropertyStats),
		window:     window,
	}
}

// Lookup records one value lookup against property.
func (s *LookupStats) Lookup(property string, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.entry(property)
	stats.Frequency++
	if hit {
		stats.Hits++
	} else {
		stats.Misses++
	}
	stats.LastSeen = time.Now()
}

// IndexBuilt records a full index build for property.
func (s *LookupStats) IndexBuilt(property string, items int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.entry(property)
	stats.Builds++
	stats.BuildTime += elapsed
	stats.LastSeen = time.Now()
}

func (s *LookupStats) entry(property string) *PropertyStats {
	stats, exists := s.properties[property]
	if !exists {
		stats = &PropertyStats{Property: property}
		s.properties[property] = stats
	}
	return stats
}

// Get returns a copy of the statistics for property.
func (s *LookupStats) Get(property string) (PropertyStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.properties[property]
	if !ok {
		return PropertyStats{}, false
	}
	return *stats, true
}

// TopProperties returns up to n properties sorted by lookup frequency
// (descending, ties by name). The result holds copies.
func (s *LookupStats) TopProperties(n int) []PropertyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.properties) == 0 {
		return []PropertyStats{}
	}

	stats := make([]PropertyStats, 0, len(s.properties))
	for _, ps := range s.properties {
		stats = append(stats, *ps)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Property < stats[j].Property
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
func (s *LookupStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for property, stats := range s.properties {
		if stats.LastSeen.Before(threshold) {
			delete(s.properties, property)
		}
	}
}
