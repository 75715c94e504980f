package metadata

import (
	"math"
	"strings"
)

// DMSToDecimal converts a degrees/minutes/seconds triple to signed decimal
// degrees rounded to 6 places. South and West references are negative.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	dd := degrees + minutes/60 + seconds/3600

	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		dd = -dd
	}

	return math.Round(dd*1e6) / 1e6
}

// FormatCoordinates renders a latitude/longitude pair for display.
func FormatCoordinates(lat, lon float64) string {
	return FormatValue(lat) + ", " + FormatValue(lon)
}
