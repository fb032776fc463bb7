package reorder

import (
	"github.com/shopspring/decimal"
)

// Summary aggregates a suggestion list for display.
type Summary struct {
	TotalSuggestions           int             `json:"totalSuggestions"`
	HighPriorityCount          int             `json:"highPriorityCount"`
	EstimatedAdditionalRevenue decimal.Decimal `json:"estimatedAdditionalRevenue"`
}

// Summarize totals suggestions, pricing every suggested unit at
// revenuePerUnit.
func Summarize(suggestions []Suggestion, revenuePerUnit decimal.Decimal) Summary {
	s := Summary{
		TotalSuggestions:           len(suggestions),
		EstimatedAdditionalRevenue: decimal.Zero,
	}
	for _, sg := range suggestions {
		if sg.Priority == PriorityHigh {
			s.HighPriorityCount++
		}
		s.EstimatedAdditionalRevenue = s.EstimatedAdditionalRevenue.Add(
			revenuePerUnit.Mul(decimal.NewFromInt(int64(sg.SuggestedOrderQuantity))))
	}
	return s
}
