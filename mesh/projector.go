package mesh

import (
	"fmt"

	"github.com/james-bowman/sparse"
)

// NODETOL is the barycentric tolerance used to accept points on element
// edges.
const NODETOL = 1.e-9

// barycentric returns the P1 basis values of element k at (x, y).
func (m *Mesh) barycentric(k int, x, y float64) (l [3]float64) {
	v := m.EToV[k]
	x0, y0 := m.VX[v[0]], m.VY[v[0]]
	x1, y1 := m.VX[v[1]], m.VY[v[1]]
	x2, y2 := m.VX[v[2]], m.VY[v[2]]
	det := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	l[1] = ((x-x0)*(y2-y0) - (x2-x0)*(y-y0)) / det
	l[2] = ((x1-x0)*(y-y0) - (x-x0)*(y1-y0)) / det
	l[0] = 1 - l[1] - l[2]
	return
}

// Locate returns the first element containing (x, y) and the barycentric
// weights there.
func (m *Mesh) Locate(x, y float64) (k int, l [3]float64, err error) {
	for k = range m.EToV {
		l = m.barycentric(k, x, y)
		if l[0] >= -NODETOL && l[1] >= -NODETOL && l[2] >= -NODETOL {
			return k, l, nil
		}
	}
	return -1, l, fmt.Errorf("%w: (%g, %g)", ErrOutside, x, y)
}

// Projector builds the len(px) x NumVertices interpolation matrix whose row
// i holds the barycentric weights of point i.
func (m *Mesh) Projector(px, py []float64) (*sparse.CSR, error) {
	if len(px) != len(py) {
		return nil, fmt.Errorf("%w: %d x coordinates, %d y coordinates", ErrDimension, len(px), len(py))
	}
	coo := sparse.NewCOO(len(px), m.NumVertices(), nil, nil, nil)
	for i := range px {
		k, l, err := m.Locate(px[i], py[i])
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		for j, v := range m.EToV[k] {
			if l[j] != 0 {
				coo.Set(i, v, l[j])
			}
		}
	}
	return coo.ToCSR(), nil
}
