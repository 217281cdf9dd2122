package spatialmath

import (
	"math"
	"strconv"
	"strings"
)

// spaceDelimitedStringToSlice splits space-delimited SDF fields such as a pose element.
// Fields that fail to parse become NaN.
func spaceDelimitedStringToSlice(s string) []float64 {
	slice := strings.Fields(s)
	converted := make([]float64, 0, len(slice))
	for _, value := range slice {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			f = math.NaN()
		}
		converted = append(converted, f)
	}
	return converted
}
