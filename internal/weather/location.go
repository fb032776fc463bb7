package weather

import "strings"

var unsafeLocationChars = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "", "&", "")

// SanitizeLocation strips characters that could be used for injection and
// trims surrounding whitespace. The result is safe for outbound requests and
// log lines; case is preserved.
func SanitizeLocation(location string) string {
	return strings.TrimSpace(unsafeLocationChars.Replace(location))
}

// CacheKey normalizes a location for cache lookups.
func CacheKey(location string) string {
	return strings.ToLower(SanitizeLocation(location))
}
