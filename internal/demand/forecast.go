package demand

import (
	"fmt"
	"strconv"

	"github.com/i474232898/weather-reorder/internal/weather"
)

// Product categories a forecast can target.
const (
	CategoryBeer    = "Beer"
	CategoryWine    = "Wine"
	CategorySpirits = "Spirits"
	CategoryAll     = "All Categories"
)

// Forecast is the expected demand change for one product category.
type Forecast struct {
	ProductCategory   string  `json:"productCategory"`
	DemandMultiplier  float64 `json:"demandMultiplier"`
	Reasoning         string  `json:"reasoning"`
	RecommendedAction string  `json:"recommendedAction"`
}

// Calculate maps a snapshot to demand forecasts. Rules are evaluated
// independently and the result keeps evaluation order. Any snapshot is
// accepted, including one without a forecast.
func Calculate(w weather.WeatherSnapshot) []Forecast {
	var out []Forecast

	temp := w.TemperatureF
	humidity := w.HumidityPercent
	heatIndex := weather.HeatIndex(temp, humidity)

	switch {
	case temp >= 60:
		var desc string
		multiplier := 1.2

		switch {
		case heatIndex >= 85:
			desc = fmt.Sprintf("Hot and muggy conditions (%s°F, %s%% humidity, feels like %s°F)",
				num(temp), num(humidity), num(heatIndex))
			multiplier = 1.5
		case temp >= 75 && humidity >= 70:
			desc = fmt.Sprintf("Warm and humid weather (%s°F, %s%% humidity)", num(temp), num(humidity))
			multiplier = 1.4
		case temp >= 75:
			desc = fmt.Sprintf("Pleasant warm weather (%s°F)", num(temp))
			multiplier = 1.3
		default:
			desc = fmt.Sprintf("Mild weather (%s°F)", num(temp))
		}

		action := "Increase beer orders by 20-30%. All beer types in demand."
		if multiplier >= 1.4 {
			action = "Increase beer orders by 40-50%. Focus on light, refreshing beers."
		}

		out = append(out, Forecast{
			ProductCategory:   CategoryBeer,
			DemandMultiplier:  multiplier,
			Reasoning:         desc + " increases beer consumption",
			RecommendedAction: action,
		})
	case temp <= 50:
		out = append(out, Forecast{
			ProductCategory:   CategoryBeer,
			DemandMultiplier:  0.8,
			Reasoning:         fmt.Sprintf("Cold weather (%s°F) reduces beer consumption", num(temp)),
			RecommendedAction: "Reduce beer orders by 20%. Focus on darker, heavier beers.",
		})
	}

	if temp <= 60 || w.Condition == weather.ConditionRain {
		out = append(out, Forecast{
			ProductCategory:   CategoryWine,
			DemandMultiplier:  1.2,
			Reasoning:         fmt.Sprintf("Cool weather/rain (%s°F, %s) increases wine consumption", num(temp), w.Condition),
			RecommendedAction: "Increase wine orders by 20%. Focus on reds and full-bodied wines.",
		})
	}

	if temp <= 45 {
		out = append(out, Forecast{
			ProductCategory:   CategorySpirits,
			DemandMultiplier:  1.3,
			Reasoning:         fmt.Sprintf("Cold weather (%s°F) increases cocktail and spirits consumption", num(temp)),
			RecommendedAction: "Increase spirits orders by 30%. Focus on whiskey, rum, and hot cocktail ingredients.",
		})
	}

	if w.Condition == weather.ConditionRain || w.Condition == weather.ConditionThunderstorm {
		out = append(out, Forecast{
			ProductCategory:   CategoryAll,
			DemandMultiplier:  1.15,
			Reasoning:         "Rainy weather increases overall alcohol consumption as customers stay longer",
			RecommendedAction: "Increase all inventory by 15%. Prepare for longer customer visits.",
		})
	}

	return out
}

// num renders 72 as "72" and 72.5 as "72.5".
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
