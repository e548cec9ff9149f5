package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/num/hyperdual"
	"gonum.org/v1/gonum/optimize"

	"github.com/notargets/spdebarrier/ad"
)

// Objective is the likelihood over a flat parameter vector. It holds no
// state that changes between calls, so one Objective may be evaluated from
// several goroutines.
type Objective struct {
	data   *Data
	layout Layout
}

// NewObjective validates d once; later calls only check vector lengths.
func NewObjective(d *Data) (*Objective, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Objective{data: d, layout: d.Layout()}, nil
}

// Layout is the parameter layout of the flat vectors.
func (o *Objective) Layout() Layout { return o.layout }

// Evaluate returns the full result at x.
func (o *Objective) Evaluate(x []float64) Result[float64] {
	return evaluate[float64](ad.Float{}, o.data, split(o.layout, x))
}

// Value is the negative log-likelihood at x.
func (o *Objective) Value(x []float64) float64 {
	return o.Evaluate(x).NLL
}

// Gradient returns the value and exact gradient at x. It costs one
// dual-number evaluation per coordinate.
func (o *Objective) Gradient(x []float64) (float64, []float64) {
	o.checkLen(x)
	return ad.Gradient(x, func(xs []dual.Number) dual.Number {
		return evaluate[dual.Number](ad.Dual{}, o.data, split(o.layout, xs)).NLL
	})
}

// Hessian returns the value and exact Hessian at x. It costs one
// hyperdual evaluation per entry of the upper triangle and is meant for
// small problems and final reports.
func (o *Objective) Hessian(x []float64) (float64, *mat.SymDense) {
	o.checkLen(x)
	return ad.Hessian(x, func(xs []hyperdual.Number) hyperdual.Number {
		return evaluate[hyperdual.Number](ad.HyperDual{}, o.data, split(o.layout, xs)).NLL
	})
}

// Problem adapts the objective to gonum's optimizer.
func (o *Objective) Problem() optimize.Problem {
	return optimize.Problem{
		Func: o.Value,
		Grad: func(grad, x []float64) {
			_, g := o.Gradient(x)
			copy(grad, g)
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			_, h := o.Hessian(x)
			hess.CopySym(h)
		},
	}
}

func (o *Objective) checkLen(x []float64) {
	if len(x) != o.layout.Len() {
		panic(fmt.Sprintf("model: parameter vector has length %d, layout wants %d", len(x), o.layout.Len()))
	}
}

// Estimate is a reported value with its standard error.
type Estimate struct {
	Name   string
	Value  float64
	StdErr float64
}

// Report is the delta-method summary at a parameter vector.
type Report struct {
	NLL float64
	// Params holds every flat parameter with sqrt(diag(H^-1)).
	Params []Estimate
	// Derived holds the reported functions of the parameters.
	Derived []Estimate
	// Covariance is H^-1.
	Covariance *mat.SymDense
}

// SDReport inverts the Hessian at x and propagates it to the derived
// quantities: Var(g(x)) = grad(g)' H^-1 grad(g). The joint Hessian over
// every parameter is used; nothing is integrated out.
func (o *Objective) SDReport(x []float64) (*Report, error) {
	nll, h := o.Hessian(x)
	return o.report(x, nll, h)
}

func (o *Objective) report(x []float64, nll float64, h *mat.SymDense) (*Report, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil, ErrNotPositiveDefinite
	}
	cov := mat.NewSymDense(len(x), nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	rep := &Report{NLL: nll, Covariance: cov}
	for i, name := range o.layout.Names() {
		rep.Params = append(rep.Params, Estimate{
			Name:   name,
			Value:  x[i],
			StdErr: math.Sqrt(cov.At(i, i)),
		})
	}

	values := derived[float64](ad.Float{}, Transform[float64](ad.Float{}, split(o.layout, x)))
	for j, d := range values {
		_, g := ad.Gradient(x, func(xs []dual.Number) dual.Number {
			p := split(o.layout, xs)
			return derived[dual.Number](ad.Dual{}, Transform[dual.Number](ad.Dual{}, p))[j].Value
		})
		var hg mat.VecDense
		if err := chol.SolveVecTo(&hg, mat.NewVecDense(len(g), g)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
		}
		rep.Derived = append(rep.Derived, Estimate{
			Name:   d.Name,
			Value:  d.Value,
			StdErr: math.Sqrt(floats.Dot(g, hg.RawVector().Data)),
		})
	}
	return rep, nil
}
