// Package dashboard holds the in-memory verification state served to the
// admin UI: an ordered list of every market the oracle has sighted, plus
// aggregate counts. There is no persistence; the list lives until process
// restart, which is a known durability limitation surfaced to operators
// rather than hidden.
package dashboard

import (
	"sync"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// Store is the single mutation path for dashboard state. Every update
// upserts into the newest-first list, stamps LastUpdated, and recomputes the
// aggregate counts with a full scan. The O(n) recompute is accepted over
// incremental counters for simplicity.
type Store struct {
	mu          sync.RWMutex
	markets     []domain.DashboardMarket
	index       map[string]int // market ID -> position in markets
	lastUpdated time.Time
	isPolling   bool
	stats       domain.DashboardStats
	now         func() time.Time
}

// NewStore creates an empty dashboard store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Upsert inserts or replaces the market's dashboard record. New markets are
// prepended (newest first); existing markets are updated in place. Records
// are never removed.
func (s *Store) Upsert(market domain.DashboardMarket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[market.ID]; ok {
		s.markets[pos] = market
	} else {
		s.markets = append([]domain.DashboardMarket{market}, s.markets...)
		for id, pos := range s.index {
			s.index[id] = pos + 1
		}
		s.index[market.ID] = 0
	}

	s.lastUpdated = s.now()
	s.recomputeStats()
}

// Get returns the dashboard record for a market ID.
func (s *Store) Get(id string) (domain.DashboardMarket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return domain.DashboardMarket{}, false
	}
	return s.markets[pos], true
}

// SetPolling flags whether the discovery loop is active.
func (s *Store) SetPolling(polling bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isPolling = polling
	s.lastUpdated = s.now()
}

// Snapshot returns a copy of the full dashboard state, newest market first.
func (s *Store) Snapshot() domain.DashboardState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]domain.DashboardMarket, len(s.markets))
	copy(markets, s.markets)

	return domain.DashboardState{
		Markets:     markets,
		LastUpdated: s.lastUpdated,
		IsPolling:   s.isPolling,
		Stats:       s.stats,
	}
}

// Stats returns the current aggregate counts.
func (s *Store) Stats() domain.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Recent returns up to limit of the most recently sighted markets.
func (s *Store) Recent(limit int) []domain.DashboardMarket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.markets) {
		limit = len(s.markets)
	}
	out := make([]domain.DashboardMarket, limit)
	copy(out, s.markets[:limit])
	return out
}

// recomputeStats rebuilds the aggregate counts from the full list. Caller
// must hold the write lock.
func (s *Store) recomputeStats() {
	stats := domain.DashboardStats{Total: len(s.markets)}
	for i := range s.markets {
		switch s.markets[i].VerificationStatus {
		case domain.StatusVerified:
			stats.Verified++
		case domain.StatusFlagged:
			stats.Flagged++
		case domain.StatusRejected:
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	s.stats = stats
}
