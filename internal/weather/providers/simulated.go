package providers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/i474232898/weather-reorder/internal/weather"
)

var simulatedConditions = []weather.Condition{
	weather.ConditionClear,
	weather.ConditionClouds,
	weather.ConditionRain,
}

// SimulatedProvider generates plausible seasonal weather when no live
// provider is configured. Output depends only on the clock and the random
// source, both injectable.
type SimulatedProvider struct {
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

type SimulatedOption func(*SimulatedProvider)

func WithRand(rng *rand.Rand) SimulatedOption {
	return func(p *SimulatedProvider) {
		p.rng = rng
	}
}

func WithClock(now func() time.Time) SimulatedOption {
	return func(p *SimulatedProvider) {
		p.now = now
	}
}

func NewSimulatedProvider(opts ...SimulatedOption) *SimulatedProvider {
	p := &SimulatedProvider{
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SimulatedProvider) Name() string {
	return "simulated"
}

// Fetch never fails.
func (p *SimulatedProvider) Fetch(_ context.Context, _ string) (weather.WeatherSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	// Diurnal swing peaks at noon and bottoms out at midnight.
	diurnal := math.Sin(float64(now.Hour()-6)*math.Pi/12) * 15
	current := math.Round(seasonalBaseTemp(now.Month()) + diurnal + p.jitter(10))

	snapshot := weather.WeatherSnapshot{
		TemperatureF:    current,
		Condition:       p.condition(),
		HumidityPercent: math.Round(40 + p.rng.Float64()*40),
		Forecast:        make([]weather.DailyForecast, 0, weather.ForecastDays),
		Simulated:       true,
	}

	for i := 0; i < weather.ForecastDays; i++ {
		high := math.Round(current + p.jitter(20))
		low := math.Round(current - 15 + p.jitter(10))
		if low > high {
			high, low = low, high
		}
		snapshot.Forecast = append(snapshot.Forecast, weather.DailyForecast{
			Date:      now.AddDate(0, 0, i).Format("2006-01-02"),
			TempHighF: high,
			TempLowF:  low,
			Condition: p.condition(),
		})
	}

	return snapshot, nil
}

// jitter returns a value in [-span/2, span/2).
func (p *SimulatedProvider) jitter(span float64) float64 {
	return (p.rng.Float64() - 0.5) * span
}

func (p *SimulatedProvider) condition() weather.Condition {
	return simulatedConditions[p.rng.Intn(len(simulatedConditions))]
}

func seasonalBaseTemp(m time.Month) float64 {
	switch {
	case m == time.December || m <= time.March:
		return 35
	case m <= time.June:
		return 65
	case m <= time.September:
		return 85
	default:
		return 60
	}
}
