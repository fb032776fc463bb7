package advisor_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-reorder/internal/advisor"
	"github.com/i474232898/weather-reorder/internal/catalog"
	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/demand"
	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/quota"
	"github.com/i474232898/weather-reorder/internal/reorder"
	"github.com/i474232898/weather-reorder/internal/weather"
	"github.com/i474232898/weather-reorder/internal/weather/providers"
)

type fixedSource struct {
	snapshot weather.WeatherSnapshot
	err      error
}

func (s fixedSource) GetWeather(_ context.Context, location string) (weather.WeatherSnapshot, error) {
	if s.err != nil {
		return weather.WeatherSnapshot{}, s.err
	}
	snap := s.snapshot
	snap.Location = location
	return snap, nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []advisor.Report
	err     error
}

func (s *recordingSink) Publish(_ context.Context, r advisor.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

type failingCatalog struct{}

func (failingCatalog) Products(context.Context) ([]catalog.Product, error) {
	return nil, errors.New("catalog unavailable")
}

var generatedAt = time.Date(2024, time.July, 1, 15, 0, 0, 0, time.UTC)

func newGenerator() *reorder.Generator {
	return reorder.NewGenerator(reorder.WithRand(rand.New(rand.NewSource(3))))
}

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{ID: 1, Name: "Lager", CategoryID: catalog.Int(1), LastCountQuantity: catalog.Int(10), ParLevel: catalog.Int(20)},
		{ID: 2, Name: "Merlot", CategoryID: catalog.Int(2), LastCountQuantity: catalog.Int(5), ParLevel: catalog.Int(12)},
		{ID: 3, Name: "Rye", CategoryID: catalog.Int(3), LastCountQuantity: catalog.Int(40), ParLevel: catalog.Int(20)},
	}
}

func TestGenerateReorderSuggestions_HotDay(t *testing.T) {
	src := fixedSource{snapshot: weather.WeatherSnapshot{TemperatureF: 95, HumidityPercent: 80, Condition: weather.ConditionClear}}
	svc := advisor.NewService(src, newGenerator(), catalog.NewMemoryCatalog(), logger.NewNop(),
		advisor.WithClock(func() time.Time { return generatedAt }))

	r, err := svc.GenerateReorderSuggestions(context.Background(), "Phoenix", sampleProducts())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, "Phoenix", r.Location)
	assert.Equal(t, generatedAt, r.GeneratedAt)

	require.Len(t, r.DemandForecasts, 1)
	assert.Equal(t, demand.CategoryBeer, r.DemandForecasts[0].ProductCategory)

	require.Len(t, r.ReorderSuggestions, 1)
	s := r.ReorderSuggestions[0]
	assert.Equal(t, 1, s.ProductID)
	assert.Equal(t, 20, s.SuggestedOrderQuantity)
	assert.Equal(t, reorder.PriorityHigh, s.Priority)

	assert.Equal(t, 1, r.Summary.TotalSuggestions)
	assert.Equal(t, 1, r.Summary.HighPriorityCount)
	assert.True(t, decimal.NewFromInt(500).Equal(r.Summary.EstimatedAdditionalRevenue))
}

func TestGenerateReorderSuggestions_EmptyCatalogGivesEmptyList(t *testing.T) {
	src := fixedSource{snapshot: weather.WeatherSnapshot{TemperatureF: 55, HumidityPercent: 40, Condition: weather.ConditionClear}}
	svc := advisor.NewService(src, newGenerator(), catalog.NewMemoryCatalog(), logger.NewNop())

	r, err := svc.GenerateReorderSuggestions(context.Background(), "Seattle", nil)
	require.NoError(t, err)
	assert.NotNil(t, r.ReorderSuggestions)
	assert.Empty(t, r.ReorderSuggestions)
	assert.Zero(t, r.Summary.TotalSuggestions)
}

func TestGenerateReorderSuggestions_WeatherErrorAborts(t *testing.T) {
	svc := advisor.NewService(fixedSource{err: weather.ErrRateLimited}, newGenerator(), catalog.NewMemoryCatalog(), logger.NewNop())

	r, err := svc.GenerateReorderSuggestions(context.Background(), "Chicago", sampleProducts())
	assert.ErrorIs(t, err, weather.ErrRateLimited)
	assert.Empty(t, r.ReorderSuggestions)
	assert.Empty(t, r.DemandForecasts)
}

func TestGenerateReorderSuggestions_ErrorPolicy(t *testing.T) {
	src := fixedSource{snapshot: weather.WeatherSnapshot{TemperatureF: 40, HumidityPercent: 50, Condition: weather.ConditionSnow}}
	gen := reorder.NewGenerator(reorder.WithEmptyMatchPolicy(config.PolicyError, 0))
	products := []catalog.Product{{ID: 9, Name: "Napkins", LastCountQuantity: catalog.Int(0), ParLevel: catalog.Int(10)}}
	svc := advisor.NewService(src, gen, catalog.NewMemoryCatalog(), logger.NewNop())

	_, err := svc.GenerateReorderSuggestions(context.Background(), "Fargo", products)
	assert.ErrorIs(t, err, reorder.ErrNoCategoryMatch)
}

func TestRun_PublishesToSinks(t *testing.T) {
	src := fixedSource{snapshot: weather.WeatherSnapshot{TemperatureF: 95, HumidityPercent: 80, Condition: weather.ConditionRain}}
	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("sink down")}

	var buf bytes.Buffer
	l := logger.New("test", "test", "debug", &buf)

	svc := advisor.NewService(src, newGenerator(), catalog.NewMemoryCatalog(sampleProducts()...), l,
		advisor.WithSinks(broken, ok, advisor.NewLogSink(l)),
		advisor.WithRevenuePerUnit(decimal.NewFromInt(10)))

	r, err := svc.Run(context.Background(), "Miami")
	require.NoError(t, err, "sink failures do not fail the run")

	require.Len(t, ok.reports, 1)
	require.Len(t, broken.reports, 1)
	assert.Equal(t, r.ID, ok.reports[0].ID)

	total := 0
	for _, s := range r.ReorderSuggestions {
		total += s.SuggestedOrderQuantity
	}
	assert.True(t, decimal.NewFromInt(int64(total*10)).Equal(r.Summary.EstimatedAdditionalRevenue))

	assert.Contains(t, buf.String(), "sink down")
	assert.Contains(t, buf.String(), "reorder suggestions published")
}

func TestRun_CatalogError(t *testing.T) {
	sink := &recordingSink{}
	svc := advisor.NewService(fixedSource{}, newGenerator(), failingCatalog{}, logger.NewNop(), advisor.WithSinks(sink))

	_, err := svc.Run(context.Background(), "Miami")
	assert.ErrorContains(t, err, "catalog unavailable")
	assert.Empty(t, sink.reports)
}

func TestRun_SimulatedWeatherEndToEnd(t *testing.T) {
	now := time.Date(2024, time.August, 10, 12, 0, 0, 0, time.UTC)
	m := quota.NewManager(config.EnvDevelopment, map[string]config.ServiceConfig{
		weather.ServiceName: {HourlyRateLimit: 60, CacheTTL: 5 * time.Minute, RetryAttempts: 2},
	}, quota.WithClock(func() time.Time { return now }))
	sim := providers.NewSimulatedProvider(
		providers.WithRand(rand.New(rand.NewSource(11))),
		providers.WithClock(func() time.Time { return now }),
	)
	src := weather.NewSource(m, nil, sim, logger.NewNop())
	svc := advisor.NewService(src, newGenerator(), catalog.NewMemoryCatalog(sampleProducts()...), logger.NewNop())

	first, err := svc.Run(context.Background(), "Chicago")
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), "chicago")
	require.NoError(t, err)

	assert.True(t, first.Weather.Simulated)
	assert.Equal(t, first.Weather, second.Weather, "second run is served from cache")
	assert.NotEqual(t, first.ID, second.ID)
	// August noon is hot, so beer demand is up.
	require.NotEmpty(t, first.DemandForecasts)
	assert.Equal(t, demand.CategoryBeer, first.DemandForecasts[0].ProductCategory)
	assert.Greater(t, first.DemandForecasts[0].DemandMultiplier, 1.0)
}
