package strategy

import (
	"math"
)

// Pearson computes the Pearson correlation coefficient of the two return
// series. Unequal lengths are compared over their common tail, series too
// short or flat correlate at zero.
func Pearson(a []float64, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	// Use the most recent n entries of each series.
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	var sumA, sumB float64
	for idx := 0; idx < n; idx++ {
		sumA += a[idx]
		sumB += b[idx]
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for idx := 0; idx < n; idx++ {
		devA := a[idx] - meanA
		devB := b[idx] - meanB
		cov += devA * devB
		varA += devA * devA
		varB += devB * devB
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}
