package model

import (
	"fmt"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/spmat"
)

// Params holds every free parameter of the model.
type Params[T any] struct {
	Beta      []T
	LogTau    T
	LogKappa  T
	LogSigmaE T
	// X is the latent field at the mesh vertices, before scaling by 1/tau.
	X []T
	// Epsilon is the unstructured residual, one per observation.
	Epsilon []T
}

// Transformed are the positive quantities behind the log parameters.
type Transformed[T any] struct {
	Tau, Kappa, SigmaE T
}

// Transform exponentiates the log-scale parameters.
func Transform[T any](f ad.Field[T], p Params[T]) Transformed[T] {
	return Transformed[T]{
		Tau:    f.Exp(p.LogTau),
		Kappa:  f.Exp(p.LogKappa),
		SigmaE: f.Exp(p.LogSigmaE),
	}
}

// Interpolate returns (A x) / tau.
func Interpolate[T any](f ad.Field[T], a spmat.Sparse, x []T, tau T) []T {
	delta := spmat.MulVec(f, a, x)
	for i := range delta {
		delta[i] = f.Div(delta[i], tau)
	}
	return delta
}

// Layout fixes the flat parameter order
//
//	beta, log_tau, log_kappa, log_sigma_e, x, epsilon
//
// used by the optimizer-facing interfaces.
type Layout struct {
	NBeta, NVertex, NObs int
}

const (
	nameBeta      = "beta"
	nameLogTau    = "log_tau"
	nameLogKappa  = "log_kappa"
	nameLogSigmaE = "log_sigma_e"
	nameX         = "x"
	nameEpsilon   = "epsilon"
)

// Len is the length of a flat parameter vector.
func (l Layout) Len() int { return l.NBeta + 3 + l.NVertex + l.NObs }

// Names labels every flat coordinate, e.g. "beta[0]" or "log_kappa".
func (l Layout) Names() []string {
	names := make([]string, 0, l.Len())
	for i := 0; i < l.NBeta; i++ {
		names = append(names, fmt.Sprintf("%s[%d]", nameBeta, i))
	}
	names = append(names, nameLogTau, nameLogKappa, nameLogSigmaE)
	for i := 0; i < l.NVertex; i++ {
		names = append(names, fmt.Sprintf("%s[%d]", nameX, i))
	}
	for i := 0; i < l.NObs; i++ {
		names = append(names, fmt.Sprintf("%s[%d]", nameEpsilon, i))
	}
	return names
}

// Index returns the flat position of a scalar parameter ("log_tau",
// "log_kappa" or "log_sigma_e"), or -1.
func (l Layout) Index(name string) int {
	switch name {
	case nameLogTau:
		return l.NBeta
	case nameLogKappa:
		return l.NBeta + 1
	case nameLogSigmaE:
		return l.NBeta + 2
	}
	return -1
}

// Split views a flat vector as Params. The slices alias v.
func (l Layout) Split(v []float64) Params[float64] { return split(l, v) }

func split[T any](l Layout, v []T) Params[T] {
	if len(v) != l.Len() {
		panic(fmt.Sprintf("model: parameter vector has length %d, layout wants %d", len(v), l.Len()))
	}
	nb := l.NBeta
	xs := nb + 3
	es := xs + l.NVertex
	return Params[T]{
		Beta:      v[:nb:nb],
		LogTau:    v[nb],
		LogKappa:  v[nb+1],
		LogSigmaE: v[nb+2],
		X:         v[xs:es:es],
		Epsilon:   v[es:],
	}
}

// Pack flattens p in layout order.
func (l Layout) Pack(p Params[float64]) ([]float64, error) {
	if err := l.check(len(p.Beta), len(p.X), len(p.Epsilon)); err != nil {
		return nil, err
	}
	v := make([]float64, 0, l.Len())
	v = append(v, p.Beta...)
	v = append(v, p.LogTau, p.LogKappa, p.LogSigmaE)
	v = append(v, p.X...)
	v = append(v, p.Epsilon...)
	return v, nil
}

func (l Layout) check(nb, nv, no int) error {
	if nb != l.NBeta || nv != l.NVertex || no != l.NObs {
		return fmt.Errorf("%w: params have %d/%d/%d beta/x/epsilon entries, layout wants %d/%d/%d",
			ErrDimension, nb, nv, no, l.NBeta, l.NVertex, l.NObs)
	}
	return nil
}
