package mesh

import "fmt"

type edgeKey struct{ a, b int }

func newEdgeKey(u, v int) edgeKey {
	if u > v {
		u, v = v, u
	}
	return edgeKey{u, v}
}

type edgeOwner struct {
	elem, face int
}

// Connect builds EToE and EToF by matching sorted vertex pairs.
func (m *Mesh) Connect() error {
	K := m.NumElements()
	m.EToE = make([][3]int, K)
	m.EToF = make([][3]int, K)
	for k := 0; k < K; k++ {
		for f := 0; f < 3; f++ {
			m.EToE[k][f] = k
			m.EToF[k][f] = f
		}
	}

	owners := make(map[edgeKey][]edgeOwner, 3*K/2+1)
	for k, tri := range m.EToV {
		for f := 0; f < 3; f++ {
			key := newEdgeKey(tri[f], tri[(f+1)%3])
			owners[key] = append(owners[key], edgeOwner{k, f})
		}
	}

	m.numEdges = len(owners)
	m.numBoundary = 0
	for key, own := range owners {
		switch len(own) {
		case 1:
			m.numBoundary++
		case 2:
			a, b := own[0], own[1]
			m.EToE[a.elem][a.face] = b.elem
			m.EToF[a.elem][a.face] = b.face
			m.EToE[b.elem][b.face] = a.elem
			m.EToF[b.elem][b.face] = a.face
		default:
			return fmt.Errorf("%w: edge (%d,%d) has %d elements", ErrNonManifold, key.a, key.b, len(own))
		}
	}
	return nil
}

// InterfaceEdges counts the interior edges that separate a selected
// element from an unselected one.
func (m *Mesh) InterfaceEdges(sel []bool) int {
	if len(sel) != m.NumElements() {
		panic("mesh: selection length mismatch")
	}
	var n int
	for k := range m.EToE {
		for f := 0; f < 3; f++ {
			nb := m.EToE[k][f]
			if nb > k && sel[nb] != sel[k] {
				n++
			}
		}
	}
	return n
}
