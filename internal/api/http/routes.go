package httpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-reorder/internal/advisor"
	"github.com/i474232898/weather-reorder/internal/config"
	"github.com/i474232898/weather-reorder/internal/quota"
	"github.com/i474232898/weather-reorder/internal/reorder"
	"github.com/i474232898/weather-reorder/internal/store"
	"github.com/i474232898/weather-reorder/internal/weather"
)

// topSuggestions bounds the suggestions returned by the forecast endpoint;
// the summary still covers all of them.
const topSuggestions = 10

var validate = validator.New()

// Advisor runs the reorder pipeline; satisfied by *advisor.Service.
type Advisor interface {
	Run(ctx context.Context, location string) (advisor.Report, error)
}

// WeatherSource is satisfied by *weather.Source.
type WeatherSource interface {
	GetWeather(ctx context.Context, location string) (weather.WeatherSnapshot, error)
}

// ReportReader is satisfied by *store.MemoryStore.
type ReportReader interface {
	GetLatest(location string) (advisor.Report, error)
	GetRange(location string, from, to time.Time) ([]advisor.Report, error)
	Locations() int
}

// QuotaReporter is satisfied by *quota.Manager.
type QuotaReporter interface {
	Environment() string
	Config(service string) config.ServiceConfig
	Configured(service string) bool
	Usage(service string) (quota.UsageStats, bool)
	CacheEntries() int
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Advisor         Advisor
	Weather         WeatherSource
	Reports         ReportReader
	Quota           QuotaReporter
	Gatherer        prometheus.Gatherer
	DefaultLocation string
	Now             func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")
	// weather-forecast goes first so the optional parameter of /weather
	// never sees it.
	v1.Get("/weather-forecast/:location?", h.weatherForecast)
	v1.Get("/weather/:location?", h.weather)
	v1.Get("/reports/:location", h.latestReport)
	v1.Get("/reports/:location/history", h.reportHistory)
	v1.Get("/system/status", h.systemStatus)

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

type handlers struct {
	deps Deps
}

func (h *handlers) weather(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}

	snapshot, err := h.deps.Weather.GetWeather(c.UserContext(), loc)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(snapshot)
}

func (h *handlers) weatherForecast(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}

	report, err := h.deps.Advisor.Run(c.UserContext(), loc)
	if err != nil {
		return mapError(err)
	}

	top := report.ReorderSuggestions
	if len(top) > topSuggestions {
		top = top[:topSuggestions]
	}

	return c.JSON(fiber.Map{
		"reportId":           report.ID,
		"location":           report.Location,
		"generatedAt":        report.GeneratedAt,
		"weather":            report.Weather,
		"demandForecasts":    report.DemandForecasts,
		"reorderSuggestions": top,
		"summary":            report.Summary,
	})
}

func (h *handlers) latestReport(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}

	report, err := h.deps.Reports.GetLatest(loc)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(report)
}

func (h *handlers) reportHistory(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}

	var req historyQuery
	if err := req.bind(c, h.deps.Now()); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}

	reports, err := h.deps.Reports.GetRange(loc, req.From, req.To)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"location": loc,
		"from":     req.From,
		"to":       req.To,
		"reports":  reports,
	})
}

func (h *handlers) systemStatus(c *fiber.Ctx) error {
	q := h.deps.Quota
	sc := q.Config(weather.ServiceName)

	usage, ok := q.Usage(weather.ServiceName)
	var lastUsed *time.Time
	if ok && !usage.LastUsed.IsZero() {
		lastUsed = &usage.LastUsed
	}

	var maskedKey *string
	if sc.APIKey != "" {
		masked := quota.MaskAPIKey(sc.APIKey)
		maskedKey = &masked
	}

	return c.JSON(fiber.Map{
		"system": fiber.Map{
			"status":      "operational",
			"timestamp":   h.deps.Now().UTC(),
			"environment": q.Environment(),
		},
		"apis": fiber.Map{
			weather.ServiceName: fiber.Map{
				"configured":      q.Configured(weather.ServiceName),
				"maskedKey":       maskedKey,
				"rateLimit":       sc.HourlyRateLimit,
				"cacheTTLSeconds": int(sc.CacheTTL.Seconds()),
				"usage": fiber.Map{
					"totalCalls":       usage.TotalCalls,
					"successfulCalls":  usage.SuccessfulCalls,
					"failedCalls":      usage.FailedCalls,
					"lastUsed":         lastUsed,
					"rateLimitReached": usage.RateLimitReached,
				},
			},
		},
		"cache": fiber.Map{
			"weatherEntries":  q.CacheEntries(),
			"reportLocations": h.deps.Reports.Locations(),
		},
	})
}

// locationParam is the sanitized location of a request.
type locationParam struct {
	Location string `validate:"required,max=100"`
}

// location reads the optional :location path segment, falling back to the
// default location when it is absent.
func (h *handlers) location(c *fiber.Ctx) (string, error) {
	raw := c.Params("location")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	if raw == "" {
		raw = h.deps.DefaultLocation
	}

	p := locationParam{Location: weather.SanitizeLocation(raw)}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid location")
	}
	return p.Location, nil
}

// historyQuery holds query parameters for the report history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

// bind reads from and to; both default to the last 24 hours ending at now.
func (q *historyQuery) bind(c *fiber.Ctx, now time.Time) error {
	q.To = now.UTC()
	q.From = q.To.Add(-24 * time.Hour)

	if s := c.Query("from"); s != "" {
		from, err := parseTime(s)
		if err != nil {
			return err
		}
		q.From = from
	}
	if s := c.Query("to"); s != "" {
		to, err := parseTime(s)
		if err != nil {
			return err
		}
		q.To = to
	}
	return nil
}

// parseTime accepts RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// mapError converts pipeline errors into HTTP errors.
func mapError(err error) error {
	var (
		pe *weather.ProviderError
		ps *weather.ParseError
	)
	switch {
	case errors.Is(err, weather.ErrInvalidLocation):
		return fiber.NewError(fiber.StatusBadRequest, "invalid location")
	case errors.Is(err, weather.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, weather.ErrRateLimited.Error())
	case errors.As(err, &ps):
		return fiber.NewError(fiber.StatusBadGateway, "weather provider returned an unexpected payload")
	case errors.As(err, &pe):
		return fiber.NewError(fiber.StatusBadGateway, "weather provider error")
	case errors.Is(err, reorder.ErrNoCategoryMatch):
		return fiber.NewError(fiber.StatusUnprocessableEntity, reorder.ErrNoCategoryMatch.Error())
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no reorder report for requested location")
	default:
		return err
	}
}
