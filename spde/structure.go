package spde

import (
	"errors"
	"fmt"

	"github.com/notargets/spdebarrier/spmat"
)

// Validation errors; Validate wraps them with detail.
var (
	ErrDimension = errors.New("spde: dimension mismatch")
	ErrScaling   = errors.New("spde: invalid barrier scaling")
)

// Geometry holds the three finite-element matrices of the standard SPDE
// discretization (Lindgren et al. 2011, p. 8): M0 is the mass term, M1 the
// stiffness term and M2 the higher-order term.
type Geometry struct {
	M0, M1, M2 spmat.Sparse
}

// BarrierGeometry holds the barrier-model matrices. Index 0 is the normal
// region and index 1 the barrier region.
//
//	C0, C1  per-vertex sums of adjacent triangle areas in each region
//	D0, D1  stiffness matrices restricted to each region
//	I       lumped mass matrix of the whole mesh
type BarrierGeometry struct {
	C0, C1 []float64
	D0, D1 spmat.Sparse
	I      spmat.Sparse
}

// Structure selects how the precision matrix is built. It is a closed set:
// *Standard or *Barrier.
type Structure interface {
	// Vertices is the dimension of the latent field.
	Vertices() int
	Validate() error
	isStructure()
}

// Standard is the stationary SPDE precision.
type Standard struct {
	Geometry
}

// Barrier is the barrier precision with per-region range scaling
// c = (c0, c1): the normal-region range is c0*sqrt(8)/kappa and the
// barrier-region range is c1 times that.
type Barrier struct {
	Geometry BarrierGeometry
	Scaling  []float64
}

func (*Standard) isStructure() {}
func (*Barrier) isStructure()  {}

// Vertices is the order of M0.
func (s *Standard) Vertices() int {
	if s.M0 == nil {
		return 0
	}
	n, _ := s.M0.Dims()
	return n
}

// Validate checks that M0, M1 and M2 are present and share one square shape.
func (s *Standard) Validate() error {
	if s.M0 == nil || s.M1 == nil || s.M2 == nil {
		return fmt.Errorf("%w: standard geometry needs M0, M1 and M2", ErrDimension)
	}
	n := s.Vertices()
	for name, m := range map[string]spmat.Sparse{"M0": s.M0, "M1": s.M1, "M2": s.M2} {
		if err := checkSquare(name, m, n); err != nil {
			return err
		}
	}
	return nil
}

// Vertices is the order of the lumped mass I.
func (b *Barrier) Vertices() int {
	if b.Geometry.I == nil {
		return 0
	}
	n, _ := b.Geometry.I.Dims()
	return n
}

// Validate checks the geometry shapes and the scaling: c0 > 0, c1 >= 0 and
// every vertex keeps a positive weight in r0^2 C0 + r1^2 C1.
func (b *Barrier) Validate() error {
	g := b.Geometry
	if g.I == nil || g.D0 == nil || g.D1 == nil {
		return fmt.Errorf("%w: barrier geometry needs I, D0 and D1", ErrDimension)
	}
	n := b.Vertices()
	for name, m := range map[string]spmat.Sparse{"I": g.I, "D0": g.D0, "D1": g.D1} {
		if err := checkSquare(name, m, n); err != nil {
			return err
		}
	}
	if len(g.C0) != n || len(g.C1) != n {
		return fmt.Errorf("%w: C0/C1 have lengths %d/%d, want %d", ErrDimension, len(g.C0), len(g.C1), n)
	}
	if len(b.Scaling) != 2 {
		return fmt.Errorf("%w: need 2 entries, got %d", ErrScaling, len(b.Scaling))
	}
	if !(b.Scaling[0] > 0) || !(b.Scaling[1] >= 0) {
		return fmt.Errorf("%w: c = %v, want c0 > 0 and c1 >= 0", ErrScaling, b.Scaling)
	}
	for i := 0; i < n; i++ {
		if g.C0[i]*b.Scaling[0]*b.Scaling[0]+g.C1[i]*b.Scaling[1]*b.Scaling[1] <= 0 {
			return fmt.Errorf("%w: vertex %d has no weight under c = %v", ErrScaling, i, b.Scaling)
		}
	}
	return nil
}

func checkSquare(name string, m spmat.Sparse, n int) error {
	r, c := m.Dims()
	if r != n || c != n {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrDimension, name, r, c, n, n)
	}
	return nil
}
