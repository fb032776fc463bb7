package weather

import (
	"context"
)

// Provider abstracts a weather data source (live API or simulator). Location
// is already sanitized when Fetch is called.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, location string) (WeatherSnapshot, error)
}

// Guard is the cache and rate-limit collaborator of the Source. It never
// fails; its answers are advisory.
type Guard interface {
	CheckRateLimit(service string) bool
	GetCached(key string) (WeatherSnapshot, bool)
	SetCached(key string, snapshot WeatherSnapshot)
}
