// Package density holds the log densities the likelihood is built from:
// univariate normal, Poisson, and the zero-mean Gaussian Markov random
// field over a sparse precision matrix. Every function is generic over the
// numeric field so values and derivatives share one code path.
package density

import (
	"math"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/spmat"
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// NormalLog is log N(x; mu, sd).
func NormalLog[T any](f ad.Field[T], x, mu, sd T) T {
	z := f.Div(f.Sub(x, mu), sd)
	lp := f.Neg(f.Log(sd))
	lp = f.Sub(lp, f.Scale(0.5, f.Mul(z, z)))
	return f.Sub(lp, f.Const(logSqrt2Pi))
}

// PoissonLog is log Pois(y; lambda) for a count y. The count is data, so
// its log-factorial is a constant.
func PoissonLog[T any](f ad.Field[T], y float64, lambda T) T {
	lg, _ := math.Lgamma(y + 1)
	lp := f.Sub(f.Scale(y, f.Log(lambda)), lambda)
	return f.Sub(lp, f.Const(lg))
}

// GMRF is a zero-mean Gaussian Markov random field with sparse precision Q.
type GMRF[T any] struct {
	f      ad.Field[T]
	q      *spmat.Matrix[T]
	logdet T
}

// NewGMRF factorizes q. A q that is not positive definite is not reported;
// the NaN it produces surfaces in NegLogDensity.
func NewGMRF[T any](f ad.Field[T], q *spmat.Matrix[T]) *GMRF[T] {
	return &GMRF[T]{
		f:      f,
		q:      q,
		logdet: spmat.Factorize(f, q).LogDet(),
	}
}

// Dim is the field dimension.
func (g *GMRF[T]) Dim() int {
	n, _ := g.q.Dims()
	return n
}

// LogDet is log det Q.
func (g *GMRF[T]) LogDet() T { return g.logdet }

// NegLogDensity is -log p(x) = 0.5 x'Qx - 0.5 log det Q + n/2 log(2 pi).
func (g *GMRF[T]) NegLogDensity(x []T) T {
	f := g.f
	nll := f.Scale(0.5, g.q.QuadForm(f, x))
	nll = f.Sub(nll, f.Scale(0.5, g.logdet))
	return f.Add(nll, f.Const(float64(len(x))*logSqrt2Pi))
}
