// Package model evaluates the negative log-likelihood of the spatial
// Poisson count model
//
//	y_i ~ Pois(exp(X_i beta + (A x)_i / tau + eps_i))
//	x   ~ GMRF(Q(kappa))
//	eps ~ N(0, sigma_e^2) i.i.d.
//
// where Q comes from the standard or the barrier SPDE discretization.
// Evaluation is generic over the numeric field, so the same code yields
// values, gradients and Hessians.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spdebarrier/spde"
	"github.com/notargets/spdebarrier/spmat"
)

var (
	ErrDimension           = errors.New("model: dimension mismatch")
	ErrCounts              = errors.New("model: observations must be non-negative integer counts")
	ErrNotPositiveDefinite = errors.New("model: Hessian is not positive definite")
)

// Data is the fixed input of the likelihood.
type Data struct {
	// Y holds one count per observation.
	Y []float64
	// Structure selects and carries the precision geometry.
	Structure spde.Structure
	// A maps mesh vertices to observation locations (NObs x NVertex).
	A spmat.Sparse
	// X is the fixed-effect design matrix (NObs x NBeta).
	X *mat.Dense
}

// Validate checks the shapes of every component against each other and
// the counts against their domain.
func (d *Data) Validate() error {
	if d.Structure == nil {
		return fmt.Errorf("%w: no precision structure", ErrDimension)
	}
	if err := d.Structure.Validate(); err != nil {
		return err
	}
	if d.A == nil || d.X == nil {
		return fmt.Errorf("%w: interpolation and design matrices are required", ErrDimension)
	}
	nobs, nv := len(d.Y), d.Structure.Vertices()
	if r, c := d.A.Dims(); r != nobs || c != nv {
		return fmt.Errorf("%w: A is %dx%d, want %dx%d", ErrDimension, r, c, nobs, nv)
	}
	if r, _ := d.X.Dims(); r != nobs {
		return fmt.Errorf("%w: X has %d rows for %d observations", ErrDimension, r, nobs)
	}
	for i, y := range d.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) || y < 0 || y != math.Trunc(y) {
			return fmt.Errorf("%w: y[%d] = %g", ErrCounts, i, y)
		}
	}
	return nil
}

// Layout returns the parameter layout implied by the data.
func (d *Data) Layout() Layout {
	_, nb := d.X.Dims()
	return Layout{
		NBeta:   nb,
		NVertex: d.Structure.Vertices(),
		NObs:    len(d.Y),
	}
}
