package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-reorder/internal/advisor"
	"github.com/i474232898/weather-reorder/internal/catalog"
	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/metrics"
	"github.com/i474232898/weather-reorder/internal/quota"
	"github.com/i474232898/weather-reorder/internal/reorder"
	"github.com/i474232898/weather-reorder/internal/store"
	"github.com/i474232898/weather-reorder/internal/weather"
	"github.com/i474232898/weather-reorder/internal/weather/providers"
)

var testNow = time.Date(2024, time.July, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	app     *fiber.App
	quota   *quota.Manager
	reports *store.MemoryStore
}

// newTestEnv wires the real pipeline over the simulated provider. A hot July
// noon guarantees a beer forecast.
func newTestEnv(t *testing.T, products ...catalog.Product) *testEnv {
	t.Helper()

	clock := func() time.Time { return testNow }
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	q := quota.NewManager(config.EnvDevelopment, map[string]config.ServiceConfig{
		weather.ServiceName: {APIKey: "abcd1234efgh5678", HourlyRateLimit: 60, CacheTTL: 5 * time.Minute, RetryAttempts: 2},
	}, quota.WithClock(clock), quota.WithMetrics(m))

	sim := providers.NewSimulatedProvider(
		providers.WithRand(rand.New(rand.NewSource(5))),
		providers.WithClock(clock),
	)
	src := weather.NewSource(q, nil, sim, logger.NewNop())
	reports := store.NewMemoryStore(10, 0, store.WithClock(clock))
	gen := reorder.NewGenerator(reorder.WithRand(rand.New(rand.NewSource(5))), reorder.WithMetrics(m))
	svc := advisor.NewService(src, gen, catalog.NewMemoryCatalog(products...), logger.NewNop(),
		advisor.WithSinks(reports), advisor.WithClock(clock))

	app := NewApp(Deps{
		Advisor:         svc,
		Weather:         src,
		Reports:         reports,
		Quota:           q,
		Gatherer:        reg,
		DefaultLocation: "New York",
		Now:             clock,
	}, logger.NewNop(), Options{})

	return &testEnv{app: app, quota: q, reports: reports}
}

func beerProducts(n int) []catalog.Product {
	out := make([]catalog.Product, 0, n)
	for id := 1; id <= n; id++ {
		out = append(out, catalog.Product{
			ID:                id,
			Name:              "Lager",
			CategoryID:        catalog.Int(1),
			LastCountQuantity: catalog.Int(id),
			ParLevel:          catalog.Int(40),
		})
	}
	return out
}

func doGet(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := doGet(t, env.app, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, AppName, body["service"])
}

func TestWeather_DefaultLocation(t *testing.T) {
	env := newTestEnv(t)

	code, body := doGet(t, env.app, "/api/v1/weather")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "New York", body["location"])
	assert.Equal(t, true, body["simulated"])
	assert.Len(t, body["forecast"], weather.ForecastDays)
}

func TestWeather_EncodedAndSanitizedLocation(t *testing.T) {
	env := newTestEnv(t)

	code, body := doGet(t, env.app, "/api/v1/weather/San%20Francisco%22")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "San Francisco", body["location"])
}

func TestWeather_InvalidLocation(t *testing.T) {
	env := newTestEnv(t)

	code, body := doGet(t, env.app, "/api/v1/weather/%3C%3E")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "invalid location", body["message"])
}

func TestWeatherForecast_TopTenAndFullSummary(t *testing.T) {
	env := newTestEnv(t, beerProducts(5)...)

	code, body := doGet(t, env.app, "/api/v1/weather-forecast/Chicago")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "Chicago", body["location"])
	assert.NotEmpty(t, body["reportId"])
	assert.NotEmpty(t, body["demandForecasts"])

	suggestions, ok := body["reorderSuggestions"].([]any)
	require.True(t, ok)
	assert.LessOrEqual(t, len(suggestions), topSuggestions)

	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, summary["totalSuggestions"], float64(len(suggestions)))

	// The run is published to the report store.
	latest, err := env.reports.GetLatest("chicago")
	require.NoError(t, err)
	assert.Equal(t, body["reportId"], latest.ID.String())
}

func TestWeatherForecast_TruncatesToTen(t *testing.T) {
	topN := make([]reorder.Suggestion, 0, 15)
	for n := 15; n > 0; n-- {
		topN = append(topN, reorder.Suggestion{ProductID: n, SuggestedOrderQuantity: n, Priority: reorder.PriorityHigh})
	}
	fake := fakeAdvisor{report: advisor.Report{Location: "Austin", ReorderSuggestions: topN,
		Summary: reorder.Summarize(topN, advisor.DefaultRevenuePerUnit)}}

	app := NewApp(Deps{Advisor: fake, DefaultLocation: "New York"}, logger.NewNop(), Options{})
	code, body := doGet(t, app, "/api/v1/weather-forecast/Austin")
	require.Equal(t, http.StatusOK, code)

	suggestions := body["reorderSuggestions"].([]any)
	assert.Len(t, suggestions, topSuggestions)

	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(15), summary["totalSuggestions"])
	assert.Equal(t, float64(15), summary["highPriorityCount"])
	assert.Equal(t, "3000", summary["estimatedAdditionalRevenue"])
}

type fakeAdvisor struct {
	report advisor.Report
	err    error
}

func (f fakeAdvisor) Run(context.Context, string) (advisor.Report, error) {
	return f.report, f.err
}

type fakeWeather struct {
	err error
}

func (f fakeWeather) GetWeather(context.Context, string) (weather.WeatherSnapshot, error) {
	return weather.WeatherSnapshot{}, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"rate limited", weather.ErrRateLimited, http.StatusTooManyRequests, weather.ErrRateLimited.Error()},
		{"provider", &weather.ProviderError{Endpoint: "current", StatusCode: 503}, http.StatusBadGateway, "weather provider error"},
		{"parse", &weather.ParseError{Endpoint: "forecast", Field: "list"}, http.StatusBadGateway, "weather provider returned an unexpected payload"},
		{"no match", reorder.ErrNoCategoryMatch, http.StatusUnprocessableEntity, reorder.ErrNoCategoryMatch.Error()},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("run for Chicago: %w", tt.err)
			app := NewApp(Deps{
				Advisor:         fakeAdvisor{err: wrapped},
				Weather:         fakeWeather{err: wrapped},
				DefaultLocation: "New York",
			}, logger.NewNop(), Options{})

			for _, path := range []string{"/api/v1/weather-forecast/Chicago", "/api/v1/weather/Chicago"} {
				code, body := doGet(t, app, path)
				assert.Equal(t, tt.code, code, path)
				assert.Equal(t, true, body["error"], path)
				assert.Equal(t, tt.message, body["message"], path)
			}
		})
	}
}

func TestReports_LatestAndHistory(t *testing.T) {
	env := newTestEnv(t, beerProducts(3)...)

	code, _ := doGet(t, env.app, "/api/v1/reports/Boston")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doGet(t, env.app, "/api/v1/weather-forecast/Boston")
	require.Equal(t, http.StatusOK, code)

	code, body := doGet(t, env.app, "/api/v1/reports/boston")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Boston", body["location"])
	assert.Contains(t, body, "reorderSuggestions")

	code, body = doGet(t, env.app, "/api/v1/reports/Boston/history")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["reports"], 1)

	code, body = doGet(t, env.app, "/api/v1/reports/Boston/history?from=2024-07-21T00:00:00Z&to=2024-07-20T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "to must not be before from", body["message"])

	code, _ = doGet(t, env.app, "/api/v1/reports/Boston/history?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t)
	env.quota.RecordCall(weather.ServiceName, true)
	env.quota.RecordCall(weather.ServiceName, false)

	_, _ = doGet(t, env.app, "/api/v1/weather/Denver")

	code, body := doGet(t, env.app, "/api/v1/system/status")
	require.Equal(t, http.StatusOK, code)

	system := body["system"].(map[string]any)
	assert.Equal(t, config.EnvDevelopment, system["environment"])
	assert.Equal(t, "operational", system["status"])

	api := body["apis"].(map[string]any)[weather.ServiceName].(map[string]any)
	assert.Equal(t, true, api["configured"])
	assert.Equal(t, "abcd********5678", api["maskedKey"])
	assert.Equal(t, float64(60), api["rateLimit"])
	assert.Equal(t, float64(300), api["cacheTTLSeconds"])

	usage := api["usage"].(map[string]any)
	assert.Equal(t, float64(2), usage["totalCalls"])
	assert.Equal(t, float64(1), usage["successfulCalls"])
	assert.Equal(t, float64(1), usage["failedCalls"])
	assert.NotNil(t, usage["lastUsed"])

	cache := body["cache"].(map[string]any)
	assert.Equal(t, float64(1), cache["weatherEntries"])
	assert.Equal(t, float64(0), cache["reportLocations"], "/weather does not publish reports")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, beerProducts(2)...)
	code, _ := doGet(t, env.app, "/api/v1/weather-forecast/Chicago")
	require.Equal(t, http.StatusOK, code)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "reorder_weather_cache_lookups_total")
	assert.Contains(t, string(body), "reorder_suggestions_total")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	code, body := doGet(t, env.app, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, true, body["error"])
}
