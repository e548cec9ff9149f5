package problem

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notargets/spdebarrier/mesh"
	"github.com/notargets/spdebarrier/model"
	"github.com/notargets/spdebarrier/spde"
)

const barrierStrip = `
mesh:
  grid: {nx: 6, ny: 2, xmin: 0, xmax: 6, ymin: 0, ymax: 2}
barrier:
  scaling: [1, 0.1]
  regions:
    - {xmin: 2, xmax: 4, ymin: 0, ymax: 2}
observations:
  - {x: 0.5, y: 0.5, count: 2, covariates: [0.1]}
  - {x: 1.5, y: 1.2, count: 0, covariates: [-0.3]}
  - {x: 4.5, y: 0.7, count: 4, covariates: [0.8]}
  - {x: 5.9, y: 1.9, count: 1, covariates: [0.0]}
parameters:
  beta: [0.2, -0.1]
  log_kappa: -0.5
`

func TestBuildBarrierStrip(t *testing.T) {
	f, err := Parse([]byte(barrierStrip))
	require.NoError(t, err)
	p, err := f.Build()
	require.NoError(t, err)

	assert.Equal(t, 21, p.Mesh.NumVertices())
	require.Len(t, p.Barrier, 24)
	nb := 0
	for _, b := range p.Barrier {
		if b {
			nb++
		}
	}
	assert.Equal(t, 8, nb)

	s, ok := p.Data.Structure.(*spde.Barrier)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0.1}, s.Scaling)

	r, c := p.Data.X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 1.0, p.Data.X.At(2, 0))
	assert.Equal(t, 0.8, p.Data.X.At(2, 1))

	l := p.Data.Layout()
	require.Len(t, p.Start, l.Len())
	start := l.Split(p.Start)
	assert.Equal(t, []float64{0.2, -0.1}, start.Beta)
	assert.Equal(t, -0.5, start.LogKappa)
	assert.Equal(t, make([]float64, 21), start.X)

	o, err := model.NewObjective(p.Data)
	require.NoError(t, err)
	v := o.Value(p.Start)
	assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
}

func TestBuildStandardExplicitMesh(t *testing.T) {
	f, err := Parse([]byte(`
mesh:
  vx: [0, 1, 0, 1]
  vy: [0, 0, 1, 1]
  triangles: [[0, 1, 3], [0, 3, 2]]
no_intercept: true
observations:
  - {x: 0.25, y: 0.25, count: 1, covariates: [1]}
  - {x: 0.75, y: 0.5, count: 3, covariates: [1]}
`))
	require.NoError(t, err)
	p, err := f.Build()
	require.NoError(t, err)
	assert.Nil(t, p.Barrier)
	_, ok := p.Data.Structure.(*spde.Standard)
	assert.True(t, ok)
	_, c := p.Data.X.Dims()
	assert.Equal(t, 1, c)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown key", "mesh: {grid: {nx: 1, ny: 1, xmin: 0, xmax: 1, ymin: 0, ymax: 1}}\nobservatons: []\n", ErrInvalid},
		{"no mesh", "observations: [{x: 0, y: 0, count: 1}]\n", ErrInvalid},
		{"bad grid", "mesh: {grid: {nx: 0, ny: 1, xmax: 1, ymax: 1}}\n", ErrInvalid},
		{"quad", "mesh: {vx: [0, 1, 0, 1], vy: [0, 0, 1, 1], triangles: [[0, 1, 3, 2]]}\n", ErrInvalid},
		{"no observations", "mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}\n", ErrInvalid},
		{"ragged covariates", `
mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}
observations:
  - {x: 0.5, y: 0.5, count: 1, covariates: [1, 2]}
  - {x: 0.5, y: 0.5, count: 1, covariates: [1]}
`, ErrInvalid},
		{"outside", `
mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}
observations: [{x: 2, y: 0.5, count: 1}]
`, mesh.ErrOutside},
		{"negative count", `
mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}
observations: [{x: 0.5, y: 0.5, count: -1}]
`, model.ErrCounts},
		{"bad barrier element", `
mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}
barrier: {scaling: [1, 0.1], elements: [5]}
observations: [{x: 0.5, y: 0.5, count: 1}]
`, mesh.ErrIndex},
		{"bad scaling", `
mesh: {grid: {nx: 2, ny: 1, xmax: 2, ymax: 1}}
barrier: {scaling: [1], elements: [0]}
observations: [{x: 0.5, y: 0.5, count: 1}]
`, spde.ErrScaling},
		{"short beta", `
mesh: {grid: {nx: 1, ny: 1, xmax: 1, ymax: 1}}
observations: [{x: 0.5, y: 0.5, count: 1, covariates: [2]}]
parameters: {beta: [1]}
`, model.ErrDimension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			if err == nil {
				_, err = f.Build()
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f, err := Parse([]byte(barrierStrip))
	require.NoError(t, err)
	raw, err := f.Marshal()
	require.NoError(t, err)
	g, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, f, g)
}

func TestLoadLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(barrierStrip), 0o644))

	core, logs := observer.New(zapcore.DebugLevel)
	p, err := Load(path, zap.New(core))
	require.NoError(t, err)
	assert.Len(t, p.Data.Y, 4)

	loaded := logs.FilterMessage("problem loaded").All()
	require.Len(t, loaded, 1)
	fields := loaded[0].ContextMap()
	assert.Equal(t, int64(21), fields["vertices"])
	assert.Equal(t, true, fields["barrier"])
	assert.Equal(t, 1, logs.FilterMessage("barrier interface").Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
