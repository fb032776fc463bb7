package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/weather"
)

const (
	OpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

	endpointCurrent  = "current"
	endpointForecast = "forecast"

	// The forecast endpoint returns 3-hour samples; every 8th is one per day.
	samplesPerDay = 8
)

// OpenWeatherProvider fetches current conditions and the 5-day/3-hour
// forecast from OpenWeatherMap in imperial units.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	recorder CallRecorder
	l        *logger.Logger
}

// NewOpenWeatherProvider creates the live provider. attempts bounds the HTTP
// attempts per request, retries included.
func NewOpenWeatherProvider(
	client *http.Client,
	apiKey string,
	attempts int,
	recorder CallRecorder,
	l *logger.Logger,
	opts ...Option,
) *OpenWeatherProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	baseURL, backoff := applyOptions(OpenWeatherBaseURL, BackoffConfig{
		MaxRetries:      retriesFor(attempts),
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}, opts)

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit:  cb,
		recorder: recorder,
		l:        l,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owCondition struct {
	Main string `json:"main"`
}

type owCurrentPayload struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []owCondition `json:"weather"`
}

type owForecastPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			TempMin *float64 `json:"temp_min"`
			TempMax *float64 `json:"temp_max"`
		} `json:"main"`
		Weather []owCondition `json:"weather"`
	} `json:"list"`
}

// Fetch issues the current and forecast requests concurrently; if either
// fails the whole fetch fails.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, location string) (weather.WeatherSnapshot, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("openweather api key is not configured")
	}

	var (
		wg          sync.WaitGroup
		current     weather.WeatherSnapshot
		forecast    []weather.DailyForecast
		currentErr  error
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = p.fetchCurrent(ctx, location)
	}()
	go func() {
		defer wg.Done()
		forecast, forecastErr = p.fetchForecast(ctx, location)
	}()
	wg.Wait()

	if currentErr != nil {
		return weather.WeatherSnapshot{}, currentErr
	}
	if forecastErr != nil {
		return weather.WeatherSnapshot{}, forecastErr
	}

	current.Forecast = forecast
	return current, nil
}

func (p *OpenWeatherProvider) fetchCurrent(ctx context.Context, location string) (weather.WeatherSnapshot, error) {
	body, err := p.get(ctx, "/weather", endpointCurrent, location)
	if err != nil {
		return weather.WeatherSnapshot{}, err
	}

	var payload owCurrentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointCurrent, Err: err}
	}
	if payload.Main == nil || payload.Main.Temp == nil {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointCurrent, Field: "main.temp"}
	}
	if payload.Main.Humidity == nil {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointCurrent, Field: "main.humidity"}
	}
	if len(payload.Weather) == 0 || payload.Weather[0].Main == "" {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointCurrent, Field: "weather[0].main"}
	}

	return weather.WeatherSnapshot{
		TemperatureF:    math.Round(*payload.Main.Temp),
		Condition:       weather.Condition(payload.Weather[0].Main),
		HumidityPercent: *payload.Main.Humidity,
	}, nil
}

func (p *OpenWeatherProvider) fetchForecast(ctx context.Context, location string) ([]weather.DailyForecast, error) {
	body, err := p.get(ctx, "/forecast", endpointForecast, location)
	if err != nil {
		return nil, err
	}

	var payload owForecastPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &weather.ParseError{Endpoint: endpointForecast, Err: err}
	}
	if len(payload.List) == 0 {
		return nil, &weather.ParseError{Endpoint: endpointForecast, Field: "list"}
	}

	daily := make([]weather.DailyForecast, 0, weather.ForecastDays)
	for i := 0; i < len(payload.List) && len(daily) < weather.ForecastDays; i += samplesPerDay {
		item := payload.List[i]
		if item.Main == nil || item.Main.TempMax == nil || item.Main.TempMin == nil {
			return nil, &weather.ParseError{Endpoint: endpointForecast, Field: fmt.Sprintf("list[%d].main", i)}
		}
		if len(item.Weather) == 0 {
			return nil, &weather.ParseError{Endpoint: endpointForecast, Field: fmt.Sprintf("list[%d].weather", i)}
		}

		daily = append(daily, weather.DailyForecast{
			Date:      time.Unix(item.Dt, 0).UTC().Format("2006-01-02"),
			TempHighF: math.Round(*item.Main.TempMax),
			TempLowF:  math.Round(*item.Main.TempMin),
			Condition: weather.Condition(item.Weather[0].Main),
		})
	}
	return daily, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, path, endpoint, location string) ([]byte, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", location)
		values.Set("appid", p.apiKey)
		values.Set("units", "imperial")

		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.recorder, endpoint, buildRequest)

	fields := map[string]any{
		"service":  weather.ServiceName,
		"endpoint": endpoint,
		"location": location,
	}
	if err != nil {
		p.l.Warning("weather provider call failed", fields, map[string]any{"err": err.Error()})
		return nil, err
	}
	p.l.Debug("weather provider call succeeded", fields, map[string]any{"bytes": len(body)})
	return body, nil
}
