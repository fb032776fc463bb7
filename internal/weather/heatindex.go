package weather

import "math"

// HeatIndex returns the NOAA "feels like" temperature in °F using the
// Rothfusz regression. Outside the hot and humid range (below 80°F or 40% RH)
// the dry-bulb temperature is returned unchanged.
func HeatIndex(tempF, humidityPercent float64) float64 {
	if tempF < 80 || humidityPercent < 40 {
		return tempF
	}

	t := tempF
	rh := humidityPercent

	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		6.83783e-3*t*t -
		5.481717e-2*rh*rh +
		1.22874e-3*t*t*rh +
		8.5282e-4*t*rh*rh -
		1.99e-6*t*t*rh*rh

	return math.Round(hi)
}
