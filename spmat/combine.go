package spmat

import (
	"sort"

	"github.com/notargets/spdebarrier/ad"
)

// Term is a float64 matrix weighted by a field coefficient.
type Term[T any] struct {
	Coef T
	M    Sparse
}

// Combine returns sum_k Coef_k * M_k on the union of the term patterns.
// All terms must share one shape.
func Combine[T any](f ad.Field[T], terms ...Term[T]) *Matrix[T] {
	if len(terms) == 0 {
		panic("spmat: no terms to combine")
	}
	r, c := terms[0].M.Dims()
	pattern := make([]map[int]struct{}, r)
	for i := range pattern {
		pattern[i] = make(map[int]struct{})
	}
	for _, t := range terms {
		tr, tc := t.M.Dims()
		if tr != r || tc != c {
			panic("spmat: dimension mismatch")
		}
		t.M.DoNonZero(func(i, j int, _ float64) {
			pattern[i][j] = struct{}{}
		})
	}

	m := &Matrix[T]{r: r, c: c, indptr: make([]int, r+1)}
	for i, row := range pattern {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		m.ind = append(m.ind, cols...)
		m.indptr[i+1] = len(m.ind)
	}
	m.data = make([]T, len(m.ind))
	for p := range m.data {
		m.data[p] = f.Const(0)
	}

	for _, t := range terms {
		coef := t.Coef
		t.M.DoNonZero(func(i, j int, v float64) {
			cols := m.ind[m.indptr[i]:m.indptr[i+1]]
			p := m.indptr[i] + sort.SearchInts(cols, j)
			m.data[p] = f.Add(m.data[p], f.Scale(v, coef))
		})
	}
	return m
}

// AtDA returns A^T diag(d) A.
func AtDA[T any](f ad.Field[T], a *Matrix[T], d []T) *Matrix[T] {
	r, c := a.Dims()
	if len(d) != r {
		panic("spmat: dimension mismatch")
	}
	rows := make([]map[int]T, c)
	for i := range rows {
		rows[i] = make(map[int]T)
	}
	for k := 0; k < r; k++ {
		cols, vals := a.Row(k)
		for p, i := range cols {
			w := f.Mul(vals[p], d[k])
			for q, j := range cols {
				contrib := f.Mul(w, vals[q])
				if cur, ok := rows[i][j]; ok {
					rows[i][j] = f.Add(cur, contrib)
				} else {
					rows[i][j] = contrib
				}
			}
		}
	}
	return fromRows(c, c, rows)
}

// MulVec returns a*x for a float64 sparse a and a field-valued x.
func MulVec[T any](f ad.Field[T], a Sparse, x []T) []T {
	r, c := a.Dims()
	if c != len(x) {
		panic("spmat: dimension mismatch")
	}
	dst := make([]T, r)
	for i := range dst {
		dst[i] = f.Const(0)
	}
	a.DoNonZero(func(i, j int, v float64) {
		dst[i] = f.Add(dst[i], f.Scale(v, x[j]))
	})
	return dst
}
