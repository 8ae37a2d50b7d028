package frame

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func quatNorm(q [4]float64) float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

func randomUnitQuat(rng *rand.Rand) [4]float64 {
	var q [4]float64
	var n float64
	for n == 0 {
		for i := range q {
			q[i] = rng.NormFloat64()
		}
		n = quatNorm(q)
	}
	for i := range q {
		q[i] /= n
	}
	return q
}

func TestQuaternionPassthrough(t *testing.T) {
	t.Parallel()

	q := [4]float64{0.1, 0.2, 0.3, 0.9273618495495704}
	assert.Equal(t, q, Options{}.Quaternion(q))
	assert.Equal(t, [3]float64{1, 2, 3}, Options{}.Vector([3]float64{1, 2, 3}))
}

func TestQuaternionComponentSwap(t *testing.T) {
	t.Parallel()

	opts := Options{NEDToENU: true}
	q := opts.Quaternion([4]float64{0.1, 0.2, 0.3, 0.4})
	assert.Equal(t, [4]float64{0.2, 0.1, -0.3, 0.4}, q)
}

func TestVectorConversion(t *testing.T) {
	t.Parallel()

	// North-east-down (1,2,3) reads as east-north-up (2,1,-3).
	want := [3]float64{2, 1, -3}

	t.Run("component swap", func(t *testing.T) {
		t.Parallel()
		got := Options{NEDToENU: true}.Vector([3]float64{1, 2, 3})
		assert.Equal(t, want, got)
	})

	t.Run("frame based", func(t *testing.T) {
		t.Parallel()
		got := Options{NEDToENU: true, FrameBased: true}.Vector([3]float64{1, 2, 3})
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-9)
		}
	})
}

func TestQuaternionNormPreserved(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	variants := []struct {
		name string
		opts Options
	}{
		{"component swap", Options{NEDToENU: true}},
		{"frame based", Options{NEDToENU: true, FrameBased: true}},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				q := randomUnitQuat(rng)
				out := v.opts.Quaternion(q)
				assert.InDelta(t, 1.0, quatNorm(out), 1e-6)
			}
		})
	}
}

func TestFrameBasedQuaternionDegenerate(t *testing.T) {
	t.Parallel()

	// A zero quaternion cannot be normalized; the conversion falls back to
	// identity instead of emitting NaNs.
	out := Options{NEDToENU: true, FrameBased: true}.Quaternion([4]float64{})
	for _, c := range out {
		assert.False(t, math.IsNaN(c))
	}
	assert.InDelta(t, 1.0, quatNorm(out), 1e-9)
}
