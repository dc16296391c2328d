package value

import (
	"fmt"
	"math"
)

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

// formatNumber mirrors the printf("%g", ...) formatting spec.md's
// end-to-end scenario #2 calls out (3628800 prints as 3.6288e+06).
func formatNumber(n float64) string {
	return fmt.Sprintf("%g", n)
}
