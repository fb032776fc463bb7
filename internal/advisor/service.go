package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/i474232898/weather-reorder/internal/catalog"
	"github.com/i474232898/weather-reorder/internal/demand"
	"github.com/i474232898/weather-reorder/internal/logger"
	"github.com/i474232898/weather-reorder/internal/reorder"
	"github.com/i474232898/weather-reorder/internal/weather"
)

// Report is the outcome of one pipeline run for one location.
type Report struct {
	ID                 uuid.UUID               `json:"id"`
	Location           string                  `json:"location"`
	GeneratedAt        time.Time               `json:"generatedAt"`
	Weather            weather.WeatherSnapshot `json:"weather"`
	DemandForecasts    []demand.Forecast       `json:"demandForecasts"`
	ReorderSuggestions []reorder.Suggestion    `json:"reorderSuggestions"`
	Summary            reorder.Summary         `json:"summary"`
}

// WeatherSource is satisfied by *weather.Source.
type WeatherSource interface {
	GetWeather(ctx context.Context, location string) (weather.WeatherSnapshot, error)
}

// Sink receives every report produced by Run.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// DefaultRevenuePerUnit prices each suggested unit in the summary.
var DefaultRevenuePerUnit = decimal.NewFromInt(25)

// Service composes weather, demand forecasting and reorder generation.
type Service struct {
	source         WeatherSource
	generator      *reorder.Generator
	catalog        catalog.Provider
	sinks          []Sink
	revenuePerUnit decimal.Decimal
	now            func() time.Time
	l              *logger.Logger
}

type Option func(*Service)

func WithSinks(sinks ...Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithRevenuePerUnit(v decimal.Decimal) Option {
	return func(s *Service) {
		s.revenuePerUnit = v
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	source WeatherSource,
	generator *reorder.Generator,
	products catalog.Provider,
	l *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		source:         source,
		generator:      generator,
		catalog:        products,
		revenuePerUnit: DefaultRevenuePerUnit,
		now:            time.Now,
		l:              l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateReorderSuggestions runs the pipeline for location against the given
// products. A weather failure aborts the run; nothing partial is returned.
func (s *Service) GenerateReorderSuggestions(ctx context.Context, location string, products []catalog.Product) (Report, error) {
	snapshot, err := s.source.GetWeather(ctx, location)
	if err != nil {
		return Report{}, err
	}

	forecasts := demand.Calculate(snapshot)

	suggestions, err := s.generator.Generate(forecasts, products)
	if err != nil {
		return Report{}, fmt.Errorf("generate suggestions for %s: %w", snapshot.Location, err)
	}
	if suggestions == nil {
		suggestions = []reorder.Suggestion{}
	}
	if forecasts == nil {
		forecasts = []demand.Forecast{}
	}

	return Report{
		ID:                 uuid.New(),
		Location:           snapshot.Location,
		GeneratedAt:        s.now().UTC(),
		Weather:            snapshot,
		DemandForecasts:    forecasts,
		ReorderSuggestions: suggestions,
		Summary:            reorder.Summarize(suggestions, s.revenuePerUnit),
	}, nil
}

// Run reads the catalog, generates a report for location and hands it to
// every sink. Sink failures are logged and do not fail the run.
func (s *Service) Run(ctx context.Context, location string) (Report, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load catalog: %w", err)
	}

	report, err := s.GenerateReorderSuggestions(ctx, location, products)
	if err != nil {
		return Report{}, err
	}

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			s.l.Error(err, map[string]any{
				"location":  report.Location,
				"report_id": report.ID.String(),
			})
		}
	}

	s.l.Info("reorder report generated", map[string]any{
		"location":      report.Location,
		"report_id":     report.ID.String(),
		"forecasts":     len(report.DemandForecasts),
		"suggestions":   report.Summary.TotalSuggestions,
		"high_priority": report.Summary.HighPriorityCount,
		"simulated":     report.Weather.Simulated,
	})
	return report, nil
}
