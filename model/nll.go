package model

import (
	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/density"
	"github.com/notargets/spdebarrier/spde"
)

// Contributions are the three negated log densities that make up the
// objective.
type Contributions[T any] struct {
	// Spatial is -log GMRF(x; Q).
	Spatial T
	// Residual is -sum log N(eps_i; 0, sigma_e).
	Residual T
	// Observation is -sum log Pois(y_i; lambda_i).
	Observation T
}

// Total is the negative log-likelihood.
func (c Contributions[T]) Total(f ad.Field[T]) T {
	return f.Add(f.Add(c.Spatial, c.Residual), c.Observation)
}

// Derived is a named function of the parameters reported alongside the
// objective.
type Derived[T any] struct {
	Name  string
	Value T
}

// Result is one evaluation of the objective.
type Result[T any] struct {
	NLL           T
	Contributions Contributions[T]
	Reported      []Derived[T]
}

// Evaluate validates d and the parameter shapes, then computes the
// negative log-likelihood.
func Evaluate[T any](f ad.Field[T], d *Data, p Params[T]) (Result[T], error) {
	if err := d.Validate(); err != nil {
		return Result[T]{}, err
	}
	if err := d.Layout().check(len(p.Beta), len(p.X), len(p.Epsilon)); err != nil {
		return Result[T]{}, err
	}
	return evaluate(f, d, p), nil
}

// evaluate assumes d and p have been checked.
func evaluate[T any](f ad.Field[T], d *Data, p Params[T]) Result[T] {
	tr := Transform(f, p)
	delta := Interpolate(f, d.A, p.X, tr.Tau)
	q := spde.Precision(f, d.Structure, tr.Kappa)

	var c Contributions[T]
	c.Spatial = density.NewGMRF(f, q).NegLogDensity(p.X)

	zero := f.Const(0)
	logN := make([]T, len(p.Epsilon))
	for i, e := range p.Epsilon {
		logN[i] = density.NormalLog(f, e, zero, tr.SigmaE)
	}
	c.Residual = f.Neg(ad.Sum(f, logN))

	logP := make([]T, len(d.Y))
	for i, y := range d.Y {
		eta := ad.Dot(f, ad.Consts(f, d.X.RawRowView(i)), p.Beta)
		eta = f.Add(eta, f.Add(delta[i], p.Epsilon[i]))
		logP[i] = density.PoissonLog(f, y, f.Exp(eta))
	}
	c.Observation = f.Neg(ad.Sum(f, logP))

	return Result[T]{
		NLL:           c.Total(f),
		Contributions: c,
		Reported:      derived(f, tr),
	}
}

func derived[T any](f ad.Field[T], tr Transformed[T]) []Derived[T] {
	return []Derived[T]{
		{Name: "range", Value: spde.Range(f, tr.Kappa)},
	}
}
