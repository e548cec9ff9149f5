package ad

import (
	"math"

	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/num/hyperdual"
)

// Field is the arithmetic every numeric routine in this module is written
// against. The same code path runs on plain float64 values or on numbers
// that carry derivative parts.
type Field[T any] interface {
	Const(v float64) T
	Real(a T) float64

	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Neg(a T) T
	Scale(s float64, a T) T

	Exp(a T) T
	Log(a T) T
	Sqrt(a T) T
}

var (
	_ Field[float64]          = Float{}
	_ Field[dual.Number]      = Dual{}
	_ Field[hyperdual.Number] = HyperDual{}
)

// Float is the plain float64 field.
type Float struct{}

func (Float) Const(v float64) float64 { return v }
func (Float) Real(a float64) float64 { return a }
func (Float) Add(a, b float64) float64 { return a + b }
func (Float) Sub(a, b float64) float64 { return a - b }
func (Float) Mul(a, b float64) float64 { return a * b }
func (Float) Div(a, b float64) float64 { return a / b }
func (Float) Neg(a float64) float64 { return -a }
func (Float) Scale(s float64, a float64) float64 { return s * a }
func (Float) Exp(a float64) float64 { return math.Exp(a) }
func (Float) Log(a float64) float64 { return math.Log(a) }
func (Float) Sqrt(a float64) float64 { return math.Sqrt(a) }

// Dual carries one directional derivative in the Emag part.
type Dual struct{}

func (Dual) Const(v float64) dual.Number { return dual.Number{Real: v} }
func (Dual) Real(a dual.Number) float64 { return a.Real }

func (Dual) Add(a, b dual.Number) dual.Number {
	return dual.Number{Real: a.Real + b.Real, Emag: a.Emag + b.Emag}
}

func (Dual) Sub(a, b dual.Number) dual.Number {
	return dual.Number{Real: a.Real - b.Real, Emag: a.Emag - b.Emag}
}

func (Dual) Mul(a, b dual.Number) dual.Number { return dual.Mul(a, b) }
func (Dual) Div(a, b dual.Number) dual.Number { return dual.Mul(a, dual.Inv(b)) }
func (Dual) Neg(a dual.Number) dual.Number { return dual.Scale(-1, a) }

func (Dual) Scale(s float64, a dual.Number) dual.Number { return dual.Scale(s, a) }

func (Dual) Exp(a dual.Number) dual.Number { return dual.Exp(a) }
func (Dual) Log(a dual.Number) dual.Number { return dual.Log(a) }
func (Dual) Sqrt(a dual.Number) dual.Number { return dual.Sqrt(a) }

// HyperDual carries two first-order parts and their mixed second-order
// part, which is what Hessian entries are read from.
type HyperDual struct{}

func (HyperDual) Const(v float64) hyperdual.Number { return hyperdual.Number{Real: v} }
func (HyperDual) Real(a hyperdual.Number) float64 { return a.Real }

func (HyperDual) Add(a, b hyperdual.Number) hyperdual.Number {
	return hyperdual.Number{
		Real:    a.Real + b.Real,
		E1mag:   a.E1mag + b.E1mag,
		E2mag:   a.E2mag + b.E2mag,
		E1E2mag: a.E1E2mag + b.E1E2mag,
	}
}

func (HyperDual) Sub(a, b hyperdual.Number) hyperdual.Number {
	return hyperdual.Number{
		Real:    a.Real - b.Real,
		E1mag:   a.E1mag - b.E1mag,
		E2mag:   a.E2mag - b.E2mag,
		E1E2mag: a.E1E2mag - b.E1E2mag,
	}
}

func (HyperDual) Mul(a, b hyperdual.Number) hyperdual.Number { return hyperdual.Mul(a, b) }

func (HyperDual) Div(a, b hyperdual.Number) hyperdual.Number {
	return hyperdual.Mul(a, hyperdual.Inv(b))
}

func (HyperDual) Neg(a hyperdual.Number) hyperdual.Number { return hyperdual.Scale(-1, a) }

func (HyperDual) Scale(s float64, a hyperdual.Number) hyperdual.Number {
	return hyperdual.Scale(s, a)
}

func (HyperDual) Exp(a hyperdual.Number) hyperdual.Number { return hyperdual.Exp(a) }
func (HyperDual) Log(a hyperdual.Number) hyperdual.Number { return hyperdual.Log(a) }
func (HyperDual) Sqrt(a hyperdual.Number) hyperdual.Number { return hyperdual.Sqrt(a) }

// Sum adds xs left to right.
func Sum[T any](f Field[T], xs []T) T {
	s := f.Const(0)
	for _, x := range xs {
		s = f.Add(s, x)
	}
	return s
}

// Dot returns sum_i a[i]*b[i]. Panics when the lengths differ.
func Dot[T any](f Field[T], a, b []T) T {
	if len(a) != len(b) {
		panic("ad: dimension mismatch")
	}
	s := f.Const(0)
	for i := range a {
		s = f.Add(s, f.Mul(a[i], b[i]))
	}
	return s
}

// Consts lifts a float64 slice into the field.
func Consts[T any](f Field[T], v []float64) []T {
	out := make([]T, len(v))
	for i, x := range v {
		out[i] = f.Const(x)
	}
	return out
}
