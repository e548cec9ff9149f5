package ad

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/num/hyperdual"
)

// Gradient evaluates f at x and its gradient by forward mode, seeding one
// coordinate per pass. len(x) passes are made, so the cost is linear in
// the parameter count.
func Gradient(x []float64, f func(xs []dual.Number) dual.Number) (value float64, grad []float64) {
	grad = make([]float64, len(x))
	xs := make([]dual.Number, len(x))
	if len(x) == 0 {
		return f(xs).Real, grad
	}
	for i := range x {
		for j, v := range x {
			xs[j] = dual.Number{Real: v}
		}
		xs[i].Emag = 1
		res := f(xs)
		grad[i] = res.Emag
		value = res.Real
	}
	return value, grad
}

// Hessian evaluates the exact Hessian of f at x with one hyperdual pass for
// each entry of the upper triangle.
func Hessian(x []float64, f func(xs []hyperdual.Number) hyperdual.Number) (value float64, hess *mat.SymDense) {
	n := len(x)
	if n == 0 {
		return f(nil).Real, nil
	}
	hess = mat.NewSymDense(n, nil)
	xs := make([]hyperdual.Number, n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			for k, v := range x {
				xs[k] = hyperdual.Number{Real: v}
			}
			xs[i].E1mag = 1
			xs[j].E2mag = 1
			res := f(xs)
			hess.SetSym(i, j, res.E1E2mag)
			value = res.Real
		}
	}
	return value, hess
}
