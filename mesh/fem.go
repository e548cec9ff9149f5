package mesh

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/spde"
	"github.com/notargets/spdebarrier/spmat"
)

// Linear basis on the reference triangle (-1,-1), (1,-1), (-1,1):
//
//	phi0 = -(r+s)/2, phi1 = (1+r)/2, phi2 = (1+s)/2
var (
	dphiDr = [3]float64{-0.5, 0.5, 0}
	dphiDs = [3]float64{-0.5, 0, 0.5}
)

// geometricFactors returns the metric terms of the affine map from the
// reference triangle to element k and the Jacobian determinant.
func (m *Mesh) geometricFactors(k int) (rx, ry, sx, sy, J float64) {
	v := m.EToV[k]
	xr := 0.5 * (m.VX[v[1]] - m.VX[v[0]])
	xs := 0.5 * (m.VX[v[2]] - m.VX[v[0]])
	yr := 0.5 * (m.VY[v[1]] - m.VY[v[0]])
	ys := 0.5 * (m.VY[v[2]] - m.VY[v[0]])
	J = xr*ys - xs*yr
	rx, ry = ys/J, -xs/J
	sx, sy = -yr/J, xr/J
	return
}

// localStiffness is the P1 stiffness matrix of element k,
// G_ij = |T| grad(phi_i) . grad(phi_j).
func (m *Mesh) localStiffness(k int) (g [3][3]float64) {
	rx, ry, sx, sy, J := m.geometricFactors(k)
	area := 2 * J
	var gx, gy [3]float64
	for i := 0; i < 3; i++ {
		gx[i] = dphiDr[i]*rx + dphiDs[i]*sx
		gy[i] = dphiDr[i]*ry + dphiDs[i]*sy
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g[i][j] = area * (gx[i]*gx[j] + gy[i]*gy[j])
		}
	}
	return
}

// stiffness assembles the P1 stiffness over the selected elements; a nil
// selection takes every element. The element contributions go through
// spmat so repeated (i,j) triplets are summed into a single stored entry.
func (m *Mesh) stiffness(sel []bool) *sparse.CSR {
	n := m.NumVertices()
	coo := sparse.NewCOO(n, n, nil, nil, nil)
	for k, tri := range m.EToV {
		if sel != nil && !sel[k] {
			continue
		}
		g := m.localStiffness(k)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				coo.Set(tri[i], tri[j], g[i][j])
			}
		}
	}
	return spmat.ToCSR(spmat.FromSparse[float64](ad.Float{}, coo))
}

// areaSums returns, per vertex, scale times the summed area of the
// selected adjacent elements.
func (m *Mesh) areaSums(sel []bool, scale float64) []float64 {
	c := make([]float64, m.NumVertices())
	for k, tri := range m.EToV {
		if sel != nil && !sel[k] {
			continue
		}
		a := scale * m.Area(k)
		for _, v := range tri {
			c[v] += a
		}
	}
	return c
}

func diagCSR(d []float64) *sparse.CSR {
	n := len(d)
	coo := sparse.NewCOO(n, n, nil, nil, nil)
	for i, v := range d {
		coo.Set(i, i, v)
	}
	return coo.ToCSR()
}

// FEM returns the standard SPDE matrices: M0 = lumped mass C,
// M1 = stiffness G, M2 = G C^-1 G.
func (m *Mesh) FEM() spde.Geometry {
	f := ad.Float{}
	c := m.areaSums(nil, 1.0/3)
	g := m.stiffness(nil)

	cinv := make([]float64, len(c))
	for i, v := range c {
		cinv[i] = 1 / v
	}
	// G is symmetric, so G C^-1 G = G^T C^-1 G
	g2 := spmat.AtDA[float64](f, spmat.FromSparse[float64](f, g), cinv)

	return spde.Geometry{
		M0: diagCSR(c),
		M1: g,
		M2: spmat.ToCSR(g2),
	}
}

// BarrierFEM returns the barrier-model matrices for the given barrier
// element mask.
func (m *Mesh) BarrierFEM(barrier []bool) (spde.BarrierGeometry, error) {
	if len(barrier) != m.NumElements() {
		return spde.BarrierGeometry{}, fmt.Errorf("%w: barrier mask has %d entries for %d elements",
			ErrDimension, len(barrier), m.NumElements())
	}
	normal := make([]bool, len(barrier))
	for k, b := range barrier {
		normal[k] = !b
	}
	return spde.BarrierGeometry{
		C0: m.areaSums(normal, 1),
		C1: m.areaSums(barrier, 1),
		D0: m.stiffness(normal),
		D1: m.stiffness(barrier),
		I:  diagCSR(m.areaSums(nil, 1.0/3)),
	}, nil
}
