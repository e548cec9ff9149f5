package spmat

import (
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spdebarrier/ad"
)

// Sparse is a read-only float64 sparse matrix. The CSR, CSC, COO and DOK
// types of github.com/james-bowman/sparse satisfy it, as does
// *Matrix[float64].
type Sparse interface {
	Dims() (r, c int)
	DoNonZero(fn func(i, j int, v float64))
}

var _ Sparse = (*Matrix[float64])(nil)

// Matrix is a compressed sparse row matrix whose values live in a Field.
// Column indices are sorted within each row.
type Matrix[T any] struct {
	r, c   int
	indptr []int
	ind    []int
	data   []T
}

// Dims returns the number of rows and columns.
func (m *Matrix[T]) Dims() (r, c int) { return m.r, m.c }

// NNZ is the number of stored entries.
func (m *Matrix[T]) NNZ() int { return len(m.ind) }

// Row returns the stored column indices and values of row i. The slices
// alias the matrix storage.
func (m *Matrix[T]) Row(i int) (cols []int, vals []T) {
	if i < 0 || i >= m.r {
		panic("spmat: row index out of range")
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.ind[lo:hi], m.data[lo:hi]
}

// At returns entry (i,j), or zero when it is not stored.
func (m *Matrix[T]) At(f ad.Field[T], i, j int) T {
	if j < 0 || j >= m.c {
		panic("spmat: column index out of range")
	}
	cols, vals := m.Row(i)
	if p := sort.SearchInts(cols, j); p < len(cols) && cols[p] == j {
		return vals[p]
	}
	return f.Const(0)
}

// DoNonZero calls fn for every stored entry in row-major order.
func (m *Matrix[T]) DoNonZero(fn func(i, j int, v T)) {
	for i := 0; i < m.r; i++ {
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			fn(i, m.ind[p], m.data[p])
		}
	}
}

// Scale returns s*m on the same pattern.
func (m *Matrix[T]) Scale(f ad.Field[T], s T) *Matrix[T] {
	out := m.emptyLike()
	for p, v := range m.data {
		out.data[p] = f.Mul(s, v)
	}
	return out
}

func (m *Matrix[T]) emptyLike() *Matrix[T] {
	return &Matrix[T]{
		r:      m.r,
		c:      m.c,
		indptr: m.indptr,
		ind:    m.ind,
		data:   make([]T, len(m.data)),
	}
}

// Real copies the real parts into a dense matrix.
func (m *Matrix[T]) Real(f ad.Field[T]) *mat.Dense {
	d := mat.NewDense(m.r, m.c, nil)
	m.DoNonZero(func(i, j int, v T) {
		d.Set(i, j, f.Real(v))
	})
	return d
}

// Sym copies the real parts of a square matrix into a SymDense, reading
// the upper triangle.
func (m *Matrix[T]) Sym(f ad.Field[T]) *mat.SymDense {
	if m.r != m.c {
		panic(mat.ErrSquare)
	}
	s := mat.NewSymDense(m.r, nil)
	m.DoNonZero(func(i, j int, v T) {
		if j >= i {
			s.SetSym(i, j, f.Real(v))
		}
	})
	return s
}

// IsSymmetric reports whether m equals its transpose within tol, comparing
// real parts entry by entry.
func (m *Matrix[T]) IsSymmetric(f ad.Field[T], tol float64) bool {
	if m.r != m.c {
		return false
	}
	sym := true
	m.DoNonZero(func(i, j int, v T) {
		if !sym || j <= i {
			return
		}
		a, b := f.Real(v), f.Real(m.At(f, j, i))
		if math.Abs(a-b) > tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b))) {
			sym = false
		}
	})
	return sym
}

// QuadForm returns x^T m x.
func (m *Matrix[T]) QuadForm(f ad.Field[T], x []T) T {
	if m.r != m.c || len(x) != m.r {
		panic("spmat: dimension mismatch")
	}
	s := f.Const(0)
	for i := 0; i < m.r; i++ {
		row := f.Const(0)
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			row = f.Add(row, f.Mul(m.data[p], x[m.ind[p]]))
		}
		s = f.Add(s, f.Mul(x[i], row))
	}
	return s
}

// String prints dimensions and fill.
func (m *Matrix[T]) String() string {
	return fmt.Sprintf("Matrix %dx%d nnz=%d", m.r, m.c, m.NNZ())
}

// fromRows packs per-row maps into CSR.
func fromRows[T any](r, c int, rows []map[int]T) *Matrix[T] {
	m := &Matrix[T]{r: r, c: c, indptr: make([]int, r+1)}
	for i, row := range rows {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			m.ind = append(m.ind, j)
			m.data = append(m.data, row[j])
		}
		m.indptr[i+1] = len(m.ind)
	}
	return m
}

// ToCSR converts a float matrix into a james-bowman CSR.
func ToCSR(m *Matrix[float64]) *sparse.CSR {
	indptr := append([]int(nil), m.indptr...)
	ind := append([]int(nil), m.ind...)
	data := append([]float64(nil), m.data...)
	return sparse.NewCSR(m.r, m.c, indptr, ind, data)
}

// FromSparse copies any Sparse into a Matrix over f. Duplicate entries are
// summed.
func FromSparse[T any](f ad.Field[T], s Sparse) *Matrix[T] {
	return Combine(f, Term[T]{Coef: f.Const(1), M: s})
}
