package ad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/num/hyperdual"
)

// poly is written once against Field and exercised with every
// implementation below.
func poly[T any](f Field[T], x, y T) T {
	// exp(x) * y^2 / sqrt(x) + log(y) - x
	num := f.Mul(f.Exp(x), f.Mul(y, y))
	return f.Sub(f.Add(f.Div(num, f.Sqrt(x)), f.Log(y)), x)
}

func TestFieldsAgreeOnRealPart(t *testing.T) {
	x, y := 0.7, 1.9
	want := math.Exp(x)*y*y/math.Sqrt(x) + math.Log(y) - x

	assert.InDelta(t, want, poly[float64](Float{}, x, y), 1e-14)

	d := poly[dual.Number](Dual{}, dual.Number{Real: x}, dual.Number{Real: y})
	assert.InDelta(t, want, d.Real, 1e-14)

	h := poly[hyperdual.Number](HyperDual{}, hyperdual.Number{Real: x}, hyperdual.Number{Real: y})
	assert.InDelta(t, want, h.Real, 1e-14)
}

func TestGradientMatchesClosedForm(t *testing.T) {
	x := []float64{0.7, 1.9}
	val, grad := Gradient(x, func(xs []dual.Number) dual.Number {
		return poly[dual.Number](Dual{}, xs[0], xs[1])
	})
	a, b := x[0], x[1]
	// d/da: exp(a) b^2 (a^-1/2 - 0.5 a^-3/2) - 1
	dA := math.Exp(a)*b*b*(1/math.Sqrt(a)-0.5/math.Pow(a, 1.5)) - 1
	// d/db: 2 b exp(a)/sqrt(a) + 1/b
	dB := 2*b*math.Exp(a)/math.Sqrt(a) + 1/b

	assert.InDelta(t, poly[float64](Float{}, a, b), val, 1e-14)
	assert.InDeltaSlice(t, []float64{dA, dB}, grad, 1e-12)
}

func TestHessianIsSymmetricAndExact(t *testing.T) {
	x := []float64{0.3, -1.2, 2.0}
	// f = x0^2 x1 + exp(x1 x2)
	f := func(xs []hyperdual.Number) hyperdual.Number {
		h := HyperDual{}
		t1 := h.Mul(h.Mul(xs[0], xs[0]), xs[1])
		return h.Add(t1, h.Exp(h.Mul(xs[1], xs[2])))
	}
	_, hess := Hessian(x, f)
	require.NotNil(t, hess)

	e := math.Exp(x[1] * x[2])
	want := [][]float64{
		{2 * x[1], 2 * x[0], 0},
		{2 * x[0], x[2] * x[2] * e, e + x[1]*x[2]*e},
		{0, e + x[1]*x[2]*e, x[1] * x[1] * e},
	}
	for i := range want {
		for j := range want[i] {
			assert.InDeltaf(t, want[i][j], hess.At(i, j), 1e-12, "H[%d,%d]", i, j)
		}
	}
}

func TestSumAndDot(t *testing.T) {
	f := Float{}
	assert.Equal(t, 6.0, Sum[float64](f, []float64{1, 2, 3}))
	assert.Equal(t, 32.0, Dot[float64](f, []float64{1, 2, 3}, []float64{4, 5, 6}))
	assert.Panics(t, func() { Dot[float64](f, []float64{1}, []float64{1, 2}) })
	assert.Equal(t, []dual.Number{{Real: 1}, {Real: 2}}, Consts[dual.Number](Dual{}, []float64{1, 2}))
}
