package demand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-reorder/internal/weather"
)

func snapshot(temp, humidity float64, cond weather.Condition) weather.WeatherSnapshot {
	return weather.WeatherSnapshot{TemperatureF: temp, HumidityPercent: humidity, Condition: cond}
}

func categories(fs []Forecast) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ProductCategory)
	}
	return out
}

func find(fs []Forecast, category string) (Forecast, bool) {
	for _, f := range fs {
		if f.ProductCategory == category {
			return f, true
		}
	}
	return Forecast{}, false
}

func TestCalculate_HotAndMuggy(t *testing.T) {
	fs := Calculate(snapshot(95, 80, weather.ConditionClear))

	require.Equal(t, []string{CategoryBeer}, categories(fs))
	beer := fs[0]
	assert.Equal(t, 1.5, beer.DemandMultiplier)
	assert.Contains(t, beer.Reasoning, "Hot and muggy conditions (95°F, 80% humidity, feels like")
	assert.Contains(t, beer.Reasoning, "increases beer consumption")
	assert.Equal(t, "Increase beer orders by 40-50%. Focus on light, refreshing beers.", beer.RecommendedAction)
}

func TestCalculate_BeerTiers(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		humidity float64
		want     float64
		reason   string
		action   string
	}{
		{
			name: "warm and humid", temp: 76, humidity: 70, want: 1.4,
			reason: "Warm and humid weather (76°F, 70% humidity) increases beer consumption",
			action: "Increase beer orders by 40-50%. Focus on light, refreshing beers.",
		},
		{
			name: "pleasant warm", temp: 78, humidity: 30, want: 1.3,
			reason: "Pleasant warm weather (78°F) increases beer consumption",
			action: "Increase beer orders by 20-30%. All beer types in demand.",
		},
		{
			name: "mild", temp: 65, humidity: 50, want: 1.2,
			reason: "Mild weather (65°F) increases beer consumption",
			action: "Increase beer orders by 20-30%. All beer types in demand.",
		},
		{
			name: "mild at threshold", temp: 60, humidity: 90, want: 1.2,
			reason: "Mild weather (60°F) increases beer consumption",
			action: "Increase beer orders by 20-30%. All beer types in demand.",
		},
		{
			name: "cold", temp: 50, humidity: 50, want: 0.8,
			reason: "Cold weather (50°F) reduces beer consumption",
			action: "Reduce beer orders by 20%. Focus on darker, heavier beers.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beer, ok := find(Calculate(snapshot(tt.temp, tt.humidity, weather.ConditionClear)), CategoryBeer)
			require.True(t, ok)
			assert.Equal(t, tt.want, beer.DemandMultiplier)
			assert.Equal(t, tt.reason, beer.Reasoning)
			assert.Equal(t, tt.action, beer.RecommendedAction)
		})
	}
}

func TestCalculate_NoBeerBetween51And59(t *testing.T) {
	for _, temp := range []float64{50.5, 51, 55, 59, 59.9} {
		_, ok := find(Calculate(snapshot(temp, 40, weather.ConditionClear)), CategoryBeer)
		assert.False(t, ok, "temp %v", temp)
	}

	fs := Calculate(snapshot(55, 40, weather.ConditionClear))
	assert.Equal(t, []string{CategoryWine}, categories(fs))
}

func TestCalculate_ColdSnow(t *testing.T) {
	fs := Calculate(snapshot(40, 70, weather.ConditionSnow))

	assert.Equal(t, []string{CategoryBeer, CategoryWine, CategorySpirits}, categories(fs))
	spirits, ok := find(fs, CategorySpirits)
	require.True(t, ok)
	assert.Equal(t, 1.3, spirits.DemandMultiplier)
	assert.Equal(t, "Cold weather (40°F) increases cocktail and spirits consumption", spirits.Reasoning)
	_, ok = find(fs, CategoryAll)
	assert.False(t, ok)
}

func TestCalculate_RainyDay(t *testing.T) {
	fs := Calculate(snapshot(68, 50, weather.ConditionRain))

	assert.Equal(t, []string{CategoryBeer, CategoryWine, CategoryAll}, categories(fs))
	wine, _ := find(fs, CategoryWine)
	assert.Equal(t, "Cool weather/rain (68°F, Rain) increases wine consumption", wine.Reasoning)
	all, _ := find(fs, CategoryAll)
	assert.Equal(t, 1.15, all.DemandMultiplier)
}

func TestCalculate_Thunderstorm(t *testing.T) {
	fs := Calculate(snapshot(62, 50, weather.ConditionThunderstorm))
	assert.Equal(t, []string{CategoryBeer, CategoryAll}, categories(fs))
}

func TestCalculate_Deterministic(t *testing.T) {
	w := snapshot(88, 65, weather.ConditionRain)
	assert.Equal(t, Calculate(w), Calculate(w))
}

func TestCalculate_ZeroSnapshot(t *testing.T) {
	fs := Calculate(weather.WeatherSnapshot{})
	assert.Equal(t, []string{CategoryBeer, CategoryWine, CategorySpirits}, categories(fs))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "72", num(72))
	assert.Equal(t, "72.5", num(72.5))
	assert.Equal(t, "-3", num(-3))
}
