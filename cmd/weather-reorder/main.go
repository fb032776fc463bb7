package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/i474232898/weather-reorder/internal/advisor"
	httpapi "github.com/i474232898/weather-reorder/internal/api/http"
	"github.com/i474232898/weather-reorder/internal/catalog"
	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/metrics"
	"github.com/i474232898/weather-reorder/internal/quota"
	"github.com/i474232898/weather-reorder/internal/reorder"
	"github.com/i474232898/weather-reorder/internal/scheduler"
	"github.com/i474232898/weather-reorder/internal/store"
	"github.com/i474232898/weather-reorder/internal/weather"
	"github.com/i474232898/weather-reorder/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l := logger.New(httpapi.AppName, cfg.ActiveEnv(), cfg.LogLevel)
	defer func() { _ = l.Stop() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		l.Fatal("failed to register metrics", map[string]any{"err": err.Error()})
	}

	// Profiles are resolved once for the active environment.
	weatherCfg := cfg.Service(config.ServiceWeather)
	limiter := quota.NewManager(cfg.ActiveEnv(), cfg.ServiceConfigs(), quota.WithMetrics(m))

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Without an API key every lookup is served by the simulator.
	var live weather.Provider
	if limiter.Configured(config.ServiceWeather) {
		live = newLiveProvider(cfg, httpClient, weatherCfg, limiter, l)
		l.Info("live weather provider selected", map[string]any{"provider": live.Name()})
	} else {
		l.Warning("WEATHER_API_KEY not set; serving simulated weather")
	}
	source := weather.NewSource(limiter, live, providers.NewSimulatedProvider(), l)

	products, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		l.Fatal("failed to load catalog", map[string]any{"err": err.Error(), "file": cfg.CatalogFile})
	}
	l.Info("catalog loaded", map[string]any{"file": cfg.CatalogFile, "products": products.Len()})

	revenuePerUnit, err := decimal.NewFromString(cfg.RevenuePerUnit)
	if err != nil {
		l.Fatal("invalid revenue per unit", map[string]any{"value": cfg.RevenuePerUnit})
	}

	generator := reorder.NewGenerator(
		reorder.WithEmptyMatchPolicy(cfg.EmptyMatchPolicy, cfg.FallbackProducts),
		reorder.WithMetrics(m),
	)

	// In-memory report store with configured retention.
	reports := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	svc := advisor.NewService(source, generator, products, l,
		advisor.WithSinks(reports, advisor.NewLogSink(l)),
		advisor.WithRevenuePerUnit(revenuePerUnit),
	)

	// Scheduler that keeps warm locations cached and reported.
	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, svc, l)
	if err := sched.Start(); err != nil {
		l.Fatal("failed to start scheduler", map[string]any{"err": err.Error()})
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.Deps{
		Advisor:         svc,
		Weather:         source,
		Reports:         reports,
		Quota:           limiter,
		Gatherer:        reg,
		DefaultLocation: cfg.DefaultLocation,
	}, l, httpapi.Options{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		AccessLog:    !cfg.IsProduction(),
	})

	// Start server with graceful shutdown
	go func() {
		l.Info("http server listening", map[string]any{"port": cfg.Port, "env": cfg.ActiveEnv(), "live_weather": source.Live()})
		if err := app.Listen(":" + cfg.Port); err != nil {
			l.Warning("fiber server stopped", map[string]any{"err": err.Error()})
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		l.Warning("error during shutdown", map[string]any{"err": err.Error()})
	}
}

func newLiveProvider(
	cfg *config.AppConfig,
	client *http.Client,
	sc config.ServiceConfig,
	recorder providers.CallRecorder,
	l *logger.Logger,
) weather.Provider {
	opts := []providers.Option{providers.WithBaseURL(cfg.WeatherBaseURL)}
	switch cfg.WeatherProvider {
	case config.ProviderWeatherAPI:
		return providers.NewWeatherAPIProvider(client, sc.APIKey, sc.RetryAttempts, recorder, l, opts...)
	default:
		return providers.NewOpenWeatherProvider(client, sc.APIKey, sc.RetryAttempts, recorder, l, opts...)
	}
}
