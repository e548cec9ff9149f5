package spmat

import (
	"github.com/notargets/spdebarrier/ad"
)

// Cholesky is an envelope (profile) factorization Q = L L^T. Row i of L is
// stored densely from its first structural nonzero to the diagonal; fill
// stays inside that envelope, so mesh matrices with a narrow profile
// factor in much less than O(n^3).
//
// No pivot is checked. A matrix that is not positive definite produces a
// NaN pivot, which carries through LogDet.
type Cholesky[T any] struct {
	f     ad.Field[T]
	n     int
	first []int
	rows  [][]T
}

// Factorize computes the envelope Cholesky factor of the symmetric matrix
// q, reading only its lower triangle.
func Factorize[T any](f ad.Field[T], q *Matrix[T]) *Cholesky[T] {
	n, c := q.Dims()
	if n != c {
		panic("spmat: matrix is not square")
	}
	ch := &Cholesky[T]{
		f:     f,
		n:     n,
		first: make([]int, n),
		rows:  make([][]T, n),
	}
	for i := 0; i < n; i++ {
		cols, vals := q.Row(i)
		lo := i
		if len(cols) > 0 && cols[0] < lo {
			lo = cols[0]
		}
		ch.first[i] = lo
		row := make([]T, i-lo+1)
		for k := range row {
			row[k] = f.Const(0)
		}
		for p, j := range cols {
			if j > i {
				break
			}
			row[j-lo] = vals[p]
		}

		for j := lo; j < i; j++ {
			// L_ij = (Q_ij - sum_k L_ik L_jk) / L_jj over the shared envelope
			rj := ch.rows[j]
			fj := ch.first[j]
			start := lo
			if fj > start {
				start = fj
			}
			s := row[j-lo]
			for k := start; k < j; k++ {
				s = f.Sub(s, f.Mul(row[k-lo], rj[k-fj]))
			}
			row[j-lo] = f.Div(s, rj[j-fj])
		}
		d := row[i-lo]
		for k := lo; k < i; k++ {
			d = f.Sub(d, f.Mul(row[k-lo], row[k-lo]))
		}
		row[i-lo] = f.Sqrt(d)
		ch.rows[i] = row
	}
	return ch
}

// Profile is the number of stored entries of L.
func (ch *Cholesky[T]) Profile() int {
	var p int
	for _, r := range ch.rows {
		p += len(r)
	}
	return p
}

// Diag returns L_ii.
func (ch *Cholesky[T]) Diag(i int) T {
	return ch.rows[i][i-ch.first[i]]
}

// LogDet returns log det Q = 2 sum_i log L_ii.
func (ch *Cholesky[T]) LogDet() T {
	f := ch.f
	s := f.Const(0)
	for i := 0; i < ch.n; i++ {
		s = f.Add(s, f.Log(ch.Diag(i)))
	}
	return f.Scale(2, s)
}

// SolveVec solves Q x = b by forward and back substitution.
func (ch *Cholesky[T]) SolveVec(b []T) []T {
	if len(b) != ch.n {
		panic("spmat: dimension mismatch")
	}
	f := ch.f
	y := make([]T, ch.n)
	for i := 0; i < ch.n; i++ {
		s := b[i]
		lo := ch.first[i]
		for k := lo; k < i; k++ {
			s = f.Sub(s, f.Mul(ch.rows[i][k-lo], y[k]))
		}
		y[i] = f.Div(s, ch.Diag(i))
	}
	// L^T x = y, scattering each solved x_i into the rows it touches
	x := make([]T, ch.n)
	copy(x, y)
	for i := ch.n - 1; i >= 0; i-- {
		x[i] = f.Div(x[i], ch.Diag(i))
		lo := ch.first[i]
		for k := lo; k < i; k++ {
			x[k] = f.Sub(x[k], f.Mul(ch.rows[i][k-lo], x[i]))
		}
	}
	return x
}
