package spde_test

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/mesh"
	"github.com/notargets/spdebarrier/spde"
	"github.com/notargets/spdebarrier/spmat"
)

func scalar(v float64) *sparse.CSR {
	return sparse.NewCSR(1, 1, []int{0, 1}, []int{0}, []float64{v})
}

func TestStandardSingleVertex(t *testing.T) {
	f := ad.Float{}
	s := &spde.Standard{Geometry: spde.Geometry{M0: scalar(1), M1: scalar(1), M2: scalar(1)}}
	require.NoError(t, s.Validate())
	assert.Equal(t, 1, s.Vertices())

	q := spde.Precision[float64](f, s, 1)
	assert.Equal(t, 4.0, q.At(f, 0, 0))

	// kappa^4 + 2 kappa^2 + 1 at kappa = 2
	q = spde.Precision[float64](f, s, 2)
	assert.Equal(t, 25.0, q.At(f, 0, 0))
}

func TestPrecisionKappaDerivative(t *testing.T) {
	m := mesh.Grid(3, 2, 0, 3, 0, 2)
	s := &spde.Standard{Geometry: m.FEM()}
	kappa := 0.7
	q := spde.Precision[dual.Number](ad.Dual{}, s, dual.Number{Real: kappa, Emag: 1})

	g := m.FEM()
	want := spmat.Combine[float64](ad.Float{},
		spmat.Term[float64]{Coef: 4 * kappa * kappa * kappa, M: g.M0},
		spmat.Term[float64]{Coef: 4 * kappa, M: g.M1},
	)
	q.DoNonZero(func(i, j int, v dual.Number) {
		assert.InDelta(t, want.At(ad.Float{}, i, j), v.Emag, 1e-12, "entry (%d,%d)", i, j)
	})
}

func TestPrecisionIsSymmetric(t *testing.T) {
	f := ad.Float{}
	m := mesh.Grid(6, 3, 0, 6, 0, 3)
	bg, err := m.BarrierFEM(m.Select(func(x, y float64) bool { return x > 2 && x < 4 }))
	require.NoError(t, err)

	for _, s := range []spde.Structure{
		&spde.Standard{Geometry: m.FEM()},
		&spde.Barrier{Geometry: bg, Scaling: []float64{1, 0.1}},
		&spde.Barrier{Geometry: bg, Scaling: []float64{0.5, 2}},
	} {
		require.NoError(t, s.Validate())
		for _, kappa := range []float64{0.1, 1, 7.5} {
			q := spde.Precision[float64](f, s, kappa)
			r, c := q.Dims()
			assert.Equal(t, m.NumVertices(), r)
			assert.Equal(t, m.NumVertices(), c)
			assert.True(t, q.IsSymmetric(f, 1e-12), "%T kappa=%g", s, kappa)
		}
	}
}

func TestBarrierWithoutBarrierMatchesStandard(t *testing.T) {
	f := ad.Float{}
	m := mesh.Grid(5, 4, 0, 2.5, 0, 2)
	bg, err := m.BarrierFEM(make([]bool, m.NumElements()))
	require.NoError(t, err)
	std := &spde.Standard{Geometry: m.FEM()}
	bar := &spde.Barrier{Geometry: bg, Scaling: []float64{1, 1}}

	for _, kappa := range []float64{0.3, 1, 4} {
		qs := spde.Precision[float64](f, std, kappa).Real(f)
		qb := spde.Precision[float64](f, bar, kappa).Real(f)
		qs.Scale(1/(4*math.Pi*kappa*kappa), qs)
		assert.True(t, mat.EqualApprox(qs, qb, 1e-10), "kappa=%g", kappa)
	}
}

// correlation returns corr(x_i, x_j) under precision q.
func correlation(t *testing.T, q *spmat.Matrix[float64], i, j int) float64 {
	t.Helper()
	var ch mat.Cholesky
	require.True(t, ch.Factorize(q.Sym(ad.Float{})))
	n, _ := q.Dims()
	col := func(k int) *mat.VecDense {
		e := mat.NewVecDense(n, nil)
		e.SetVec(k, 1)
		var x mat.VecDense
		require.NoError(t, ch.SolveVecTo(&x, e))
		return &x
	}
	ci, cj := col(i), col(j)
	return ci.AtVec(j) / math.Sqrt(ci.AtVec(i)*cj.AtVec(j))
}

func TestBarrierSuppressesCrossCorrelation(t *testing.T) {
	f := ad.Float{}
	m := mesh.Grid(12, 4, 0, 12, 0, 4)
	barrier := m.Select(func(x, y float64) bool { return x > 5 && x < 7 })
	bg, err := m.BarrierFEM(barrier)
	require.NoError(t, err)

	kappa := 0.5
	left, right := 2*13+3, 2*13+9
	require.Equal(t, 3.0, m.VX[left])
	require.Equal(t, 9.0, m.VX[right])

	std := spde.Precision[float64](f, &spde.Standard{Geometry: m.FEM()}, kappa)
	open := spde.Precision[float64](f, &spde.Barrier{Geometry: bg, Scaling: []float64{1, 1}}, kappa)
	closed := spde.Precision[float64](f, &spde.Barrier{Geometry: bg, Scaling: []float64{1, 0.01}}, kappa)

	rs := correlation(t, std, left, right)
	ro := correlation(t, open, left, right)
	rc := correlation(t, closed, left, right)
	assert.Greater(t, rs, 0.0)
	assert.InDelta(t, rs, ro, 1e-9)
	assert.Less(t, rc, 0.5*rs)
}

func TestZeroBarrierScalingDecouples(t *testing.T) {
	f := ad.Float{}
	m := mesh.Grid(8, 3, 0, 8, 0, 3)
	barrier := m.Select(func(x, y float64) bool { return x > 4 && x < 5 })
	bg, err := m.BarrierFEM(barrier)
	require.NoError(t, err)

	s := &spde.Barrier{Geometry: bg, Scaling: []float64{1, 0}}
	require.NoError(t, s.Validate())
	q := spde.Precision[float64](f, s, 1.3)
	q.DoNonZero(func(i, j int, v float64) {
		if (m.VX[i] <= 4 && m.VX[j] >= 5) || (m.VX[j] <= 4 && m.VX[i] >= 5) {
			assert.Zero(t, v, "entry (%d,%d)", i, j)
		}
	})
}

func TestRange(t *testing.T) {
	f := ad.Float{}
	assert.InDelta(t, 1.41421356237, spde.Range[float64](f, 2), 1e-11)
	for _, s := range []float64{1e-6, 0.01, 0.5, 3, 250, 1e8} {
		assert.Equal(t, math.Sqrt(8)/s, spde.Range[float64](f, s))
	}
	prev := math.Inf(1)
	for e := -6; e <= 6; e++ {
		r := spde.Range[float64](f, math.Pow(10, float64(e)))
		assert.Less(t, r, prev)
		prev = r
	}

	d := spde.Range[dual.Number](ad.Dual{}, dual.Number{Real: 2, Emag: 1})
	assert.InDelta(t, -math.Sqrt(8)/4, d.Emag, 1e-15)
}

func TestValidate(t *testing.T) {
	m := mesh.Grid(2, 2, 0, 1, 0, 1)
	g := m.FEM()
	bg, err := m.BarrierFEM(m.Select(func(x, y float64) bool { return x > 0.5 }))
	require.NoError(t, err)

	tests := []struct {
		name string
		s    spde.Structure
		want error
	}{
		{"missing", &spde.Standard{Geometry: spde.Geometry{M0: g.M0}}, spde.ErrDimension},
		{"shape", &spde.Standard{Geometry: spde.Geometry{M0: g.M0, M1: g.M1, M2: scalar(1)}}, spde.ErrDimension},
		{"c length", &spde.Barrier{Geometry: spde.BarrierGeometry{
			C0: bg.C0[:2], C1: bg.C1, D0: bg.D0, D1: bg.D1, I: bg.I}, Scaling: []float64{1, 1}}, spde.ErrDimension},
		{"scaling length", &spde.Barrier{Geometry: bg, Scaling: []float64{1}}, spde.ErrScaling},
		{"negative", &spde.Barrier{Geometry: bg, Scaling: []float64{1, -1}}, spde.ErrScaling},
		{"zero normal", &spde.Barrier{Geometry: bg, Scaling: []float64{0, 1}}, spde.ErrScaling},
		{"nan", &spde.Barrier{Geometry: bg, Scaling: []float64{math.NaN(), 1}}, spde.ErrScaling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.s.Validate(), tt.want)
		})
	}

	// Vertices strictly inside a two-cell-wide barrier lose all weight when
	// the barrier range is zero.
	w := mesh.Grid(6, 2, 0, 6, 0, 2)
	wide, err := w.BarrierFEM(w.Select(func(x, y float64) bool { return x > 2 && x < 4 }))
	require.NoError(t, err)
	assert.ErrorIs(t, (&spde.Barrier{Geometry: wide, Scaling: []float64{1, 0}}).Validate(), spde.ErrScaling)
	assert.NoError(t, (&spde.Barrier{Geometry: wide, Scaling: []float64{1, 1e-3}}).Validate())
}
