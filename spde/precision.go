package spde

import (
	"fmt"
	"math"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/spmat"
)

// Precision builds the sparse precision matrix of the latent field for
// spatial scale kappa. The structure is assumed valid; see Validate.
func Precision[T any](f ad.Field[T], s Structure, kappa T) *spmat.Matrix[T] {
	switch g := s.(type) {
	case *Standard:
		return standard(f, g.Geometry, kappa)
	case *Barrier:
		return barrier(f, g.Geometry, g.Scaling, kappa)
	default:
		panic(fmt.Sprintf("spde: unknown structure %T", s))
	}
}

// standard is Q = kappa^4 M0 + 2 kappa^2 M1 + M2.
func standard[T any](f ad.Field[T], g Geometry, kappa T) *spmat.Matrix[T] {
	k2 := f.Mul(kappa, kappa)
	k4 := f.Mul(k2, k2)
	return spmat.Combine(f,
		spmat.Term[T]{Coef: k4, M: g.M0},
		spmat.Term[T]{Coef: f.Scale(2, k2), M: g.M1},
		spmat.Term[T]{Coef: f.Const(1), M: g.M2},
	)
}

// barrier follows Bakka et al. (2019):
//
//	r0 = c0 sqrt(8)/kappa, r1 = c1 r0
//	Cdiag = r0^2 C0 + r1^2 C1
//	A = I + r0^2/8 D0 + r1^2/8 D1
//	Q = A^T diag(1/Cdiag) A * 6/pi
func barrier[T any](f ad.Field[T], g BarrierGeometry, c []float64, kappa T) *spmat.Matrix[T] {
	r0 := f.Scale(math.Sqrt(8)*c[0], f.Div(f.Const(1), kappa))
	r1 := f.Scale(c[1], r0)
	r0sq := f.Mul(r0, r0)
	r1sq := f.Mul(r1, r1)

	cinv := make([]T, len(g.C0))
	for i := range cinv {
		cdiag := f.Add(f.Scale(g.C0[i], r0sq), f.Scale(g.C1[i], r1sq))
		cinv[i] = f.Div(f.Const(1), cdiag)
	}

	a := spmat.Combine(f,
		spmat.Term[T]{Coef: f.Const(1), M: g.I},
		spmat.Term[T]{Coef: f.Scale(1.0/8, r0sq), M: g.D0},
		spmat.Term[T]{Coef: f.Scale(1.0/8, r1sq), M: g.D1},
	)
	q := spmat.AtDA(f, a, cinv)
	return q.Scale(f, f.Const(6/math.Pi))
}

// Range is the distance at which the Matérn correlation drops to about
// 0.1: sqrt(8)/kappa.
func Range[T any](f ad.Field[T], kappa T) T {
	return f.Div(f.Const(math.Sqrt(8)), kappa)
}
