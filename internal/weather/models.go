package weather

// Condition is the provider's main weather keyword, e.g. "Clear" or "Rain".
type Condition string

const (
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionRain         Condition = "Rain"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionSnow         Condition = "Snow"
	ConditionMist         Condition = "Mist"
)

// ForecastDays is the number of daily entries a snapshot is expected to carry.
const ForecastDays = 5

// DailyForecast is one day of the multi-day outlook. Date is YYYY-MM-DD.
type DailyForecast struct {
	Date      string    `json:"date"`
	TempHighF float64   `json:"tempHighF"`
	TempLowF  float64   `json:"tempLowF"`
	Condition Condition `json:"condition"`
}

// WeatherSnapshot is the normalized view of current conditions plus the
// daily forecast for a location. Forecast entries are ordered by date.
// Snapshots are treated as immutable once cached.
type WeatherSnapshot struct {
	Location        string          `json:"location"`
	TemperatureF    float64         `json:"temperatureF"`
	FeelsLikeF      float64         `json:"feelsLikeF"`
	Condition       Condition       `json:"condition"`
	HumidityPercent float64         `json:"humidityPercent"`
	Forecast        []DailyForecast `json:"forecast"`
	Simulated       bool            `json:"simulated"`
}
