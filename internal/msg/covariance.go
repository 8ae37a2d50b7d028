package msg

import "fmt"

// Covariance is a 3x3 covariance matrix stored row-major. The zero value
// means "unknown / unspecified", not zero uncertainty.
type Covariance [9]float64

// CovarianceFromSlice builds a covariance matrix from a flat 9-element slice.
// Anything other than exactly nine entries is a configuration fault: a
// malformed covariance silently corrupts every downstream uncertainty
// estimate, so the caller is expected to abort startup on error.
func CovarianceFromSlice(raw []float64) (Covariance, error) {
	var c Covariance
	if len(raw) != len(c) {
		return c, fmt.Errorf("covariance needs exactly %d values, got %d", len(c), len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// Slice returns the matrix flattened back to row-major order.
func (c Covariance) Slice() []float64 {
	out := make([]float64, len(c))
	copy(out, c[:])
	return out
}

// At returns the element at row i, column j.
func (c Covariance) At(i, j int) float64 {
	return c[i*3+j]
}

// IsZero reports whether every element is zero, i.e. the covariance was never
// configured.
func (c Covariance) IsZero() bool {
	for _, v := range c {
		if v != 0 {
			return false
		}
	}
	return true
}
