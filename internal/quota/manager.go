package quota

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/metrics"
	"github.com/i474232898/weather-reorder/internal/weather"
)

// RateWindow is the length of the sliding window hourly limits apply to.
const RateWindow = time.Hour

// UsageStats are cumulative per-service call counters.
type UsageStats struct {
	TotalCalls       int       `json:"totalCalls"`
	SuccessfulCalls  int       `json:"successfulCalls"`
	FailedCalls      int       `json:"failedCalls"`
	LastUsed         time.Time `json:"lastUsed"`
	RateLimitReached bool      `json:"rateLimitReached"`
}

type cacheEntry struct {
	data      weather.WeatherSnapshot
	timestamp time.Time
}

// Manager tracks per-service call windows and usage, and caches weather
// snapshots by location key. It is safe for concurrent use and never fails.
type Manager struct {
	env      string
	services map[string]config.ServiceConfig
	now      func() time.Time
	metrics  *metrics.Metrics

	mu      sync.Mutex
	windows map[string][]time.Time
	usage   map[string]*UsageStats

	// Entries never expire on their own; freshness is judged on read against
	// the stored timestamp and stale entries are only replaced by SetCached.
	cache *gocache.Cache
}

type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager for the given environment and the service
// profiles resolved for it.
func NewManager(env string, services map[string]config.ServiceConfig, opts ...Option) *Manager {
	m := &Manager{
		env:      env,
		services: make(map[string]config.ServiceConfig, len(services)),
		now:      time.Now,
		windows:  make(map[string][]time.Time),
		usage:    make(map[string]*UsageStats),
		cache:    gocache.New(gocache.NoExpiration, 0),
	}
	for name, sc := range services {
		m.services[name] = sc
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Environment is the environment whose profiles are active.
func (m *Manager) Environment() string {
	return m.env
}

// Config returns the profile of service; unknown services get a zero profile
// and are therefore always limited.
func (m *Manager) Config(service string) config.ServiceConfig {
	return m.services[service]
}

// Configured reports whether service has an API key.
func (m *Manager) Configured(service string) bool {
	return strings.TrimSpace(m.services[service].APIKey) != ""
}

// CheckRateLimit reports whether another call to service fits in the
// trailing hour. Stale timestamps are pruned first.
func (m *Manager) CheckRateLimit(service string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok := m.checkLocked(service)
	if !ok {
		m.metrics.RecordRateLimited(service)
	}
	return ok
}

func (m *Manager) checkLocked(service string) bool {
	cutoff := m.now().Add(-RateWindow)

	calls := m.windows[service]
	recent := calls[:0]
	for _, ts := range calls {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	m.windows[service] = recent

	return len(recent) < m.services[service].HourlyRateLimit
}

// RecordCall appends a call to the window of service and updates its usage.
func (m *Manager) RecordCall(service string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.windows[service] = append(m.windows[service], now)

	stats, ok := m.usage[service]
	if !ok {
		stats = &UsageStats{}
		m.usage[service] = stats
	}
	stats.TotalCalls++
	if success {
		stats.SuccessfulCalls++
	} else {
		stats.FailedCalls++
	}
	stats.LastUsed = now
	stats.RateLimitReached = !m.checkLocked(service)

	m.metrics.RecordAPICall(service, success)
}

// Usage returns a copy of the usage counters of service.
func (m *Manager) Usage(service string) (UsageStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.usage[service]
	if !ok {
		return UsageStats{}, false
	}
	return *stats, true
}

// CacheTTL is the freshness limit applied to cached weather snapshots.
func (m *Manager) CacheTTL() time.Duration {
	return m.services[weather.ServiceName].CacheTTL
}

// GetCached returns the snapshot stored under key if it is younger than the
// cache TTL. A stale entry is reported as a miss but left in place.
func (m *Manager) GetCached(key string) (weather.WeatherSnapshot, bool) {
	v, found := m.cache.Get(key)
	if !found {
		m.metrics.RecordCacheLookup(false)
		return weather.WeatherSnapshot{}, false
	}

	entry := v.(cacheEntry)
	if m.now().Sub(entry.timestamp) >= m.CacheTTL() {
		m.metrics.RecordCacheLookup(false)
		return weather.WeatherSnapshot{}, false
	}

	m.metrics.RecordCacheLookup(true)
	return entry.data, true
}

// SetCached stores snapshot under key, replacing any previous entry.
func (m *Manager) SetCached(key string, snapshot weather.WeatherSnapshot) {
	m.cache.Set(key, cacheEntry{data: snapshot, timestamp: m.now()}, gocache.NoExpiration)
}

// CacheEntries counts stored snapshots, stale ones included.
func (m *Manager) CacheEntries() int {
	return m.cache.ItemCount()
}

// MaskAPIKey hides all but the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
