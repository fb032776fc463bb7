package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-reorder/internal/common"
	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/weather"
)

const (
	WeatherAPIBaseURL = "https://api.weatherapi.com/v1"

	endpointWeatherAPIForecast = "forecast.json"
)

// WeatherAPIProvider reads current conditions and the daily outlook from
// WeatherAPI.com in a single forecast.json call.
type WeatherAPIProvider struct {
	name     string
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	recorder CallRecorder
	l        *logger.Logger
}

func NewWeatherAPIProvider(
	client *http.Client,
	apiKey string,
	attempts int,
	recorder CallRecorder,
	l *logger.Logger,
	opts ...Option,
) *WeatherAPIProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	baseURL, backoff := applyOptions(WeatherAPIBaseURL, BackoffConfig{
		MaxRetries:      retriesFor(attempts),
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}, opts)

	return &WeatherAPIProvider{
		name:    "weatherapi",
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

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type waCondition struct {
	Text string `json:"text"`
}

type waPayload struct {
	Current *struct {
		TempF     *float64     `json:"temp_f"`
		Humidity  *float64     `json:"humidity"`
		Condition *waCondition `json:"condition"`
	} `json:"current"`
	Forecast *struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  *struct {
				MaxTempF  *float64     `json:"maxtemp_f"`
				MinTempF  *float64     `json:"mintemp_f"`
				Condition *waCondition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, location string) (weather.WeatherSnapshot, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// q accepts a city name, "city,country" or "lat,lon".
		values.Set("q", location)
		values.Set("days", strconv.Itoa(weather.ForecastDays))

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpointWeatherAPIForecast, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	}

	fields := map[string]any{
		"service":  weather.ServiceName,
		"provider": p.name,
		"location": location,
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.recorder, endpointWeatherAPIForecast, buildRequest)
	if err != nil {
		p.l.Warning("weather provider call failed", fields, map[string]any{"err": err.Error()})
		return weather.WeatherSnapshot{}, err
	}

	snapshot, err := parseWeatherAPI(body)
	if err != nil {
		p.l.Warning("weather provider payload rejected", fields, map[string]any{"err": err.Error()})
		return weather.WeatherSnapshot{}, err
	}
	p.l.Debug("weather provider call succeeded", fields, map[string]any{"bytes": len(body)})
	return snapshot, nil
}

func parseWeatherAPI(body []byte) (weather.WeatherSnapshot, error) {
	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Err: err}
	}

	cur := payload.Current
	switch {
	case cur == nil || cur.TempF == nil:
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Field: "current.temp_f"}
	case cur.Humidity == nil:
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Field: "current.humidity"}
	case cur.Condition == nil || cur.Condition.Text == "":
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Field: "current.condition.text"}
	}
	if payload.Forecast == nil || len(payload.Forecast.ForecastDay) == 0 {
		return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Field: "forecast.forecastday"}
	}

	days := payload.Forecast.ForecastDay
	daily := make([]weather.DailyForecast, 0, min(len(days), weather.ForecastDays))
	for i, d := range days {
		if len(daily) == weather.ForecastDays {
			break
		}
		if d.Day == nil || d.Day.MaxTempF == nil || d.Day.MinTempF == nil {
			return weather.WeatherSnapshot{}, &weather.ParseError{Endpoint: endpointWeatherAPIForecast, Field: fmt.Sprintf("forecast.forecastday[%d].day", i)}
		}

		var cond weather.Condition
		if d.Day.Condition != nil {
			cond = mapWeatherAPICondition(d.Day.Condition.Text)
		}
		daily = append(daily, weather.DailyForecast{
			Date:      d.Date,
			TempHighF: math.Round(*d.Day.MaxTempF),
			TempLowF:  math.Round(*d.Day.MinTempF),
			Condition: cond,
		})
	}

	return weather.WeatherSnapshot{
		TemperatureF:    math.Round(*cur.TempF),
		Condition:       mapWeatherAPICondition(cur.Condition.Text),
		HumidityPercent: *cur.Humidity,
		Forecast:        daily,
	}, nil
}

// mapWeatherAPICondition folds WeatherAPI's descriptive texts onto the
// OpenWeatherMap main keywords the demand rules match on. Unrecognized
// texts pass through unchanged.
func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ""
	case common.HasAny(t, "thunder"):
		return weather.ConditionThunderstorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAny(t, "drizzle"):
		return weather.ConditionDrizzle
	case common.HasAny(t, "rain", "shower"):
		return weather.ConditionRain
	case common.HasAny(t, "fog", "mist"):
		return weather.ConditionMist
	case common.HasAny(t, "cloud", "overcast"):
		return weather.ConditionClouds
	case common.HasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.Condition(text)
	}
}
