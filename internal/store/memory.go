package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-reorder/internal/advisor"
	"github.com/i474232898/weather-reorder/internal/weather"
)

var (
	// ErrNotFound is returned when no report is available for a location.
	ErrNotFound = errors.New("no reorder report for location")
)

// ReportHistory holds the reports of one location, oldest first.
type ReportHistory struct {
	Reports []advisor.Report
}

// MemoryStore is a concurrency-safe in-memory report store. It is an
// advisor.Sink.
type MemoryStore struct {
	mu sync.RWMutex

	// key: weather.CacheKey of the location
	data map[string]*ReportHistory

	maxHistory int           // max reports per location, <= 0 is unlimited
	maxAge     time.Duration // max report age, <= 0 is unlimited
	now        func() time.Time
}

type Option func(*MemoryStore)

func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a MemoryStore with the given retention limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish appends r to the history of its location and enforces retention.
func (s *MemoryStore) Publish(_ context.Context, r advisor.Report) error {
	key := weather.CacheKey(r.Location)
	if key == "" {
		return weather.ErrInvalidLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ReportHistory{}
		s.data[key] = history
	}

	history.Reports = append(history.Reports, r)

	// Retention by count.
	if s.maxHistory > 0 && len(history.Reports) > s.maxHistory {
		over := len(history.Reports) - s.maxHistory
		history.Reports = history.Reports[over:]
	}

	// Retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Reports); i++ {
			if !history.Reports[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.Reports = history.Reports[i:]
	}
	return nil
}

// GetLatest returns the most recent report for location.
func (s *MemoryStore) GetLatest(location string) (advisor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[weather.CacheKey(location)]
	if !ok || len(history.Reports) == 0 {
		return advisor.Report{}, ErrNotFound
	}
	return history.Reports[len(history.Reports)-1], nil
}

// GetRange returns the reports for location generated between from and to,
// both inclusive.
func (s *MemoryStore) GetRange(location string, from, to time.Time) ([]advisor.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[weather.CacheKey(location)]
	if !ok || len(history.Reports) == 0 {
		return nil, ErrNotFound
	}

	var result []advisor.Report
	for _, r := range history.Reports {
		if !r.GeneratedAt.Before(from) && !r.GeneratedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Locations counts locations with at least one stored report.
func (s *MemoryStore) Locations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, h := range s.data {
		if len(h.Reports) > 0 {
			n++
		}
	}
	return n
}
