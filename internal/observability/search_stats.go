// Package observability tracks search-term popularity.
package observability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Term kinds recorded by search.
const (
	KindKeyword  = "keyword"
	KindLocation = "location"
	KindCategory = "category"
)

// SearchStats tracks how often each search term is used within a sliding
// window.
type SearchStats struct {
	mu     sync.RWMutex
	terms  map[string]map[string]*TermStats // kind → term → stats
	window time.Duration
	now    func() time.Time
}

// TermStats holds statistics for one search term.
type TermStats struct {
	Kind      string    `json:"kind"`
	Term      string    `json:"term"`
	Frequency int64     `json:"frequency"`
	LastSeen  time.Time `json:"lastSeen"`
}

// NewSearchStats creates a new search statistics tracker.
// window: time duration for pruning old entries (e.g., 24 hours)
func NewSearchStats(window time.Duration) *SearchStats {
	return &SearchStats{
		terms:  make(map[string]map[string]*TermStats),
		window: window,
		now:    time.Now,
	}
}

// RecordTerm records one use of a search term. Terms are compared
// case-insensitively; empty terms are ignored.
// This method is O(1) and thread-safe.
func (s *SearchStats) RecordTerm(kind, term string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byTerm, ok := s.terms[kind]
	if !ok {
		byTerm = make(map[string]*TermStats)
		s.terms[kind] = byTerm
	}
	stats, ok := byTerm[term]
	if !ok {
		stats = &TermStats{Kind: kind, Term: term}
		byTerm[term] = stats
	}

	stats.Frequency++
	stats.LastSeen = s.now()
}

// Top returns the n most frequent terms of a kind, or of every kind when
// kind is empty. Ties are broken by the most recently used term, then
// alphabetically. The result is a copy.
func (s *SearchStats) Top(kind string, n int) []TermStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []TermStats{}
	}

	stats := make([]TermStats, 0)
	for k, byTerm := range s.terms {
		if kind != "" && k != kind {
			continue
		}
		for _, ts := range byTerm {
			stats = append(stats, *ts)
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Term < b.Term
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where LastSeen is older than the window.
func (s *SearchStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-s.window)
	for kind, byTerm := range s.terms {
		for term, ts := range byTerm {
			if ts.LastSeen.Before(threshold) {
				delete(byTerm, term)
			}
		}
		if len(byTerm) == 0 {
			delete(s.terms, kind)
		}
	}
}

// RunPruner calls Prune every interval until ctx is cancelled.
func (s *SearchStats) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}
