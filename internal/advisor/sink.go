package advisor

import (
	"context"

	"github.com/i474232898/weather-reorder/internal/logger"
)

// LogSink writes a one-line digest of each report.
type LogSink struct {
	l *logger.Logger
}

func NewLogSink(l *logger.Logger) *LogSink {
	return &LogSink{l: l}
}

func (s *LogSink) Publish(_ context.Context, r Report) error {
	fields := map[string]any{
		"report_id":            r.ID.String(),
		"location":             r.Location,
		"total_suggestions":    r.Summary.TotalSuggestions,
		"high_priority":        r.Summary.HighPriorityCount,
		"estimated_revenue":    r.Summary.EstimatedAdditionalRevenue.StringFixed(2),
		"temperature_f":        r.Weather.TemperatureF,
		"weather_condition":    r.Weather.Condition,
		"weather_is_simulated": r.Weather.Simulated,
	}
	if len(r.ReorderSuggestions) > 0 {
		top := r.ReorderSuggestions[0]
		fields["top_product"] = top.ProductName
		fields["top_quantity"] = top.SuggestedOrderQuantity
	}
	s.l.Info("reorder suggestions published", fields)
	return nil
}
