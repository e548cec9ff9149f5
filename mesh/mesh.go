package mesh

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrDimension   = errors.New("mesh: dimension mismatch")
	ErrIndex       = errors.New("mesh: vertex index out of range")
	ErrDegenerate  = errors.New("mesh: degenerate triangle")
	ErrUnused      = errors.New("mesh: vertex not referenced by any triangle")
	ErrNonManifold = errors.New("mesh: edge shared by more than two triangles")
	ErrOutside     = errors.New("mesh: point outside mesh")
)

// Properties summarizes the mesh size.
type Properties struct {
	NumElements      int
	NumVertices      int
	NumEdges         int
	NumBoundaryEdges int
}

// Mesh is a 2-D triangulation with counter-clockwise triangles.
type Mesh struct {
	VX, VY []float64
	EToV   [][3]int

	// Element-to-element and element-to-edge connectivity, filled by
	// Connect. Edge f of element k joins local vertices f and (f+1)%3.
	// Boundary edges connect to themselves.
	EToE, EToF [][3]int

	numEdges, numBoundary int
}

// New validates the triangulation, re-orients clockwise triangles and
// builds the connectivity.
func New(vx, vy []float64, etov [][3]int) (*Mesh, error) {
	if len(vx) != len(vy) {
		return nil, fmt.Errorf("%w: %d x coordinates, %d y coordinates", ErrDimension, len(vx), len(vy))
	}
	m := &Mesh{
		VX:   vx,
		VY:   vy,
		EToV: make([][3]int, len(etov)),
	}
	used := make([]bool, len(vx))
	for k, tri := range etov {
		for _, v := range tri {
			if v < 0 || v >= len(vx) {
				return nil, fmt.Errorf("%w: element %d references vertex %d of %d", ErrIndex, k, v, len(vx))
			}
			used[v] = true
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			return nil, fmt.Errorf("%w: element %d repeats a vertex %v", ErrDegenerate, k, tri)
		}
		m.EToV[k] = tri
		a := m.signedArea(k)
		switch {
		case a < 0:
			m.EToV[k][1], m.EToV[k][2] = tri[2], tri[1]
		case a == 0:
			return nil, fmt.Errorf("%w: element %d has zero area", ErrDegenerate, k)
		}
	}
	for v, ok := range used {
		if !ok {
			return nil, fmt.Errorf("%w: vertex %d", ErrUnused, v)
		}
	}
	if err := m.Connect(); err != nil {
		return nil, err
	}
	return m, nil
}

// Grid triangulates the rectangle [xmin,xmax] x [ymin,ymax] with nx by ny
// cells, each split along its rising diagonal. Vertex (i,j) has index
// j*(nx+1)+i.
func Grid(nx, ny int, xmin, xmax, ymin, ymax float64) *Mesh {
	if nx < 1 || ny < 1 {
		panic(fmt.Sprintf("mesh: grid needs at least one cell, got %dx%d", nx, ny))
	}
	nv := (nx + 1) * (ny + 1)
	vx := make([]float64, nv)
	vy := make([]float64, nv)
	dx := (xmax - xmin) / float64(nx)
	dy := (ymax - ymin) / float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			vx[j*(nx+1)+i] = xmin + float64(i)*dx
			vy[j*(nx+1)+i] = ymin + float64(j)*dy
		}
	}
	etov := make([][3]int, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00 := j*(nx+1) + i
			v10 := v00 + 1
			v01 := v00 + nx + 1
			v11 := v01 + 1
			etov = append(etov, [3]int{v00, v10, v11}, [3]int{v00, v11, v01})
		}
	}
	m, err := New(vx, vy, etov)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mesh) NumVertices() int { return len(m.VX) }
func (m *Mesh) NumElements() int { return len(m.EToV) }

// Properties summarizes the mesh sizes.
func (m *Mesh) Properties() Properties {
	return Properties{
		NumElements:      m.NumElements(),
		NumVertices:      m.NumVertices(),
		NumEdges:         m.numEdges,
		NumBoundaryEdges: m.numBoundary,
	}
}

func (m *Mesh) signedArea(k int) float64 {
	v := m.EToV[k]
	x0, y0 := m.VX[v[0]], m.VY[v[0]]
	x1, y1 := m.VX[v[1]], m.VY[v[1]]
	x2, y2 := m.VX[v[2]], m.VY[v[2]]
	return 0.5 * ((x1-x0)*(y2-y0) - (x2-x0)*(y1-y0))
}

// Area of element k.
func (m *Mesh) Area(k int) float64 { return m.signedArea(k) }

// Centroid of element k.
func (m *Mesh) Centroid(k int) (x, y float64) {
	v := m.EToV[k]
	x = (m.VX[v[0]] + m.VX[v[1]] + m.VX[v[2]]) / 3
	y = (m.VY[v[0]] + m.VY[v[1]] + m.VY[v[2]]) / 3
	return
}

// Select marks the elements whose centroid satisfies in.
func (m *Mesh) Select(in func(x, y float64) bool) []bool {
	sel := make([]bool, m.NumElements())
	for k := range sel {
		sel[k] = in(m.Centroid(k))
	}
	return sel
}

// Mark converts element indices into a selection mask.
func (m *Mesh) Mark(elements []int) ([]bool, error) {
	sel := make([]bool, m.NumElements())
	for _, k := range elements {
		if k < 0 || k >= len(sel) {
			return nil, fmt.Errorf("%w: element %d of %d", ErrIndex, k, len(sel))
		}
		sel[k] = true
	}
	return sel, nil
}

// String returns a summary of the mesh.
func (m *Mesh) String() string {
	var sb strings.Builder
	p := m.Properties()

	sb.WriteString("=== Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Elements: %d (triangles)\n", p.NumElements))
	sb.WriteString(fmt.Sprintf("  Vertices: %d\n", p.NumVertices))
	sb.WriteString(fmt.Sprintf("  Edges: %d (%d on boundary)\n", p.NumEdges, p.NumBoundaryEdges))

	if p.NumVertices > 0 {
		sb.WriteString(fmt.Sprintf("  X range: [%.4f, %.4f]\n", floats.Min(m.VX), floats.Max(m.VX)))
		sb.WriteString(fmt.Sprintf("  Y range: [%.4f, %.4f]\n", floats.Min(m.VY), floats.Max(m.VY)))
	}
	if p.NumElements > 0 {
		amin, amax, total := math.Inf(1), math.Inf(-1), 0.0
		for k := 0; k < p.NumElements; k++ {
			a := m.Area(k)
			amin = math.Min(amin, a)
			amax = math.Max(amax, a)
			total += a
		}
		sb.WriteString(fmt.Sprintf("  Element area range: [%.4e, %.4e]\n", amin, amax))
		sb.WriteString(fmt.Sprintf("  Total area: %.4e\n", total))
	}
	sb.WriteString("====================\n")
	return sb.String()
}
