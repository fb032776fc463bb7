package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/weather-reorder/internal/logger"
)

// ServiceName is the name under which weather calls are rate limited.
const ServiceName = "weather"

// Source produces weather snapshots cache-first. With a live provider it
// enforces the rate limit; without one it falls back to the simulator.
type Source struct {
	guard     Guard
	live      Provider
	simulator Provider
	l         *logger.Logger
}

// NewSource creates a Source. live may be nil when no API key is configured,
// in which case every miss is served by simulator.
func NewSource(guard Guard, live, simulator Provider, l *logger.Logger) *Source {
	return &Source{
		guard:     guard,
		live:      live,
		simulator: simulator,
		l:         l,
	}
}

// Live reports whether a live provider is configured.
func (s *Source) Live() bool {
	return s.live != nil
}

// GetWeather returns the snapshot for location. Rate limiting yields
// ErrRateLimited; provider failures surface as *ProviderError or *ParseError.
func (s *Source) GetWeather(ctx context.Context, location string) (WeatherSnapshot, error) {
	sanitized := SanitizeLocation(location)
	key := CacheKey(location)
	if key == "" {
		return WeatherSnapshot{}, ErrInvalidLocation
	}

	if cached, ok := s.guard.GetCached(key); ok {
		s.l.Debug("weather cache hit", map[string]any{"location": sanitized})
		return cached, nil
	}

	provider := s.live
	if provider == nil {
		provider = s.simulator
	} else if !s.guard.CheckRateLimit(ServiceName) {
		s.l.Warning("weather rate limit reached", map[string]any{"location": sanitized})
		return WeatherSnapshot{}, ErrRateLimited
	}
	if provider == nil {
		return WeatherSnapshot{}, errors.New("no weather provider configured")
	}

	snapshot, err := provider.Fetch(ctx, sanitized)
	if err != nil {
		s.l.Error(err, map[string]any{"location": sanitized, "provider": provider.Name()})
		return WeatherSnapshot{}, fmt.Errorf("fetch weather for %s: %w", sanitized, err)
	}

	snapshot.Location = sanitized
	snapshot.FeelsLikeF = HeatIndex(snapshot.TemperatureF, snapshot.HumidityPercent)

	s.guard.SetCached(key, snapshot)

	s.l.Info("weather fetched", map[string]any{
		"location":  sanitized,
		"provider":  provider.Name(),
		"temp":      snapshot.TemperatureF,
		"condition": snapshot.Condition,
		"days":      len(snapshot.Forecast),
	})
	return snapshot, nil
}
