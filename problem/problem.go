// Package problem reads YAML problem files and turns them into model data
// and a starting parameter vector.
//
//	mesh:
//	  grid: {nx: 12, ny: 4, xmin: 0, xmax: 12, ymin: 0, ymax: 4}
//	barrier:
//	  scaling: [1, 0.1]
//	  regions: [{xmin: 5, xmax: 7, ymin: 0, ymax: 4}]
//	observations:
//	  - {x: 1.5, y: 2, count: 3, covariates: [0.2]}
//	parameters:
//	  log_kappa: -0.5
//
// A mesh is given either as a grid or as explicit vertices and triangles.
// Without a barrier section the standard precision is used.
package problem

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/notargets/spdebarrier/logging"
	"github.com/notargets/spdebarrier/mesh"
	"github.com/notargets/spdebarrier/model"
	"github.com/notargets/spdebarrier/spde"
)

// ErrInvalid wraps every schema and consistency error of a problem file.
var ErrInvalid = errors.New("problem: invalid problem file")

// File is the YAML document of a problem.
type File struct {
	Mesh         MeshSpec      `yaml:"mesh"`
	Barrier      *BarrierSpec  `yaml:"barrier,omitempty"`
	Observations []Observation `yaml:"observations"`
	// NoIntercept drops the leading column of ones from the design.
	NoIntercept bool       `yaml:"no_intercept,omitempty"`
	Parameters  Parameters `yaml:"parameters"`
}

// MeshSpec is either a regular Grid or explicit vertices and triangles.
type MeshSpec struct {
	Grid      *GridSpec `yaml:"grid,omitempty"`
	VX        []float64 `yaml:"vx,omitempty"`
	VY        []float64 `yaml:"vy,omitempty"`
	Triangles [][]int   `yaml:"triangles,omitempty"`
}

// GridSpec is an nx x ny grid of cells, each split into two triangles.
type GridSpec struct {
	NX   int     `yaml:"nx"`
	NY   int     `yaml:"ny"`
	XMin float64 `yaml:"xmin"`
	XMax float64 `yaml:"xmax"`
	YMin float64 `yaml:"ymin"`
	YMax float64 `yaml:"ymax"`
}

// Box is an axis-aligned region; an element belongs to it when its
// centroid does.
type Box struct {
	XMin float64 `yaml:"xmin"`
	XMax float64 `yaml:"xmax"`
	YMin float64 `yaml:"ymin"`
	YMax float64 `yaml:"ymax"`
}

// Contains reports whether (x, y) lies in b, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// BarrierSpec selects barrier elements by index, by region, or both.
type BarrierSpec struct {
	// Scaling is (c0, c1), the range multipliers of the normal and barrier
	// regions.
	Scaling  []float64 `yaml:"scaling"`
	Elements []int     `yaml:"elements,omitempty"`
	Regions  []Box     `yaml:"regions,omitempty"`
}

// Observation is one count at a location with optional covariates.
type Observation struct {
	X          float64   `yaml:"x"`
	Y          float64   `yaml:"y"`
	Count      float64   `yaml:"count"`
	Covariates []float64 `yaml:"covariates,omitempty"`
}

// Parameters are starting values. Omitted vectors start at zero.
type Parameters struct {
	Beta      []float64 `yaml:"beta,omitempty"`
	LogTau    float64   `yaml:"log_tau"`
	LogKappa  float64   `yaml:"log_kappa"`
	LogSigmaE float64   `yaml:"log_sigma_e"`
	X         []float64 `yaml:"x,omitempty"`
	Epsilon   []float64 `yaml:"epsilon,omitempty"`
}

// Problem is a built problem ready for evaluation.
type Problem struct {
	Mesh *mesh.Mesh
	// Barrier marks barrier elements; nil in standard mode.
	Barrier []bool
	Data    *model.Data
	Start   []float64
}

// Load reads and builds the problem at path.
func Load(path string, log *zap.Logger) (*Problem, error) {
	log = logging.OrNop(log)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem: read %q: %w", path, err)
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("problem: %q: %w", path, err)
	}
	p, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("problem: %q: %w", path, err)
	}
	props := p.Mesh.Properties()
	log.Info("problem loaded",
		zap.String("path", path),
		zap.Int("vertices", props.NumVertices),
		zap.Int("elements", props.NumElements),
		zap.Int("observations", len(p.Data.Y)),
		zap.Bool("barrier", p.Barrier != nil),
		zap.Int("parameters", len(p.Start)),
	)
	if p.Barrier != nil {
		log.Debug("barrier interface", zap.Int("edges", p.Mesh.InterfaceEdges(p.Barrier)))
	}
	return p, nil
}

// Parse decodes a problem file, rejecting unknown keys.
func Parse(raw []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) { return yaml.Marshal(f) }

func (f *File) buildMesh() (*mesh.Mesh, error) {
	ms := f.Mesh
	if ms.Grid != nil {
		g := ms.Grid
		if g.NX < 1 || g.NY < 1 || !(g.XMax > g.XMin) || !(g.YMax > g.YMin) {
			return nil, fmt.Errorf("%w: grid %+v", ErrInvalid, *g)
		}
		return mesh.Grid(g.NX, g.NY, g.XMin, g.XMax, g.YMin, g.YMax), nil
	}
	etov := make([][3]int, len(ms.Triangles))
	for k, tri := range ms.Triangles {
		if len(tri) != 3 {
			return nil, fmt.Errorf("%w: triangle %d has %d vertices", ErrInvalid, k, len(tri))
		}
		etov[k] = [3]int{tri[0], tri[1], tri[2]}
	}
	if len(etov) == 0 {
		return nil, fmt.Errorf("%w: mesh needs a grid or triangles", ErrInvalid)
	}
	return mesh.New(ms.VX, ms.VY, etov)
}

// Build assembles the mesh, the geometry matrices, the projector and the
// design, and packs the starting parameters.
func (f *File) Build() (*Problem, error) {
	m, err := f.buildMesh()
	if err != nil {
		return nil, err
	}
	p := &Problem{Mesh: m}

	var structure spde.Structure
	if b := f.Barrier; b != nil {
		p.Barrier, err = m.Mark(b.Elements)
		if err != nil {
			return nil, err
		}
		for _, box := range b.Regions {
			for k, in := range m.Select(box.Contains) {
				p.Barrier[k] = p.Barrier[k] || in
			}
		}
		geo, err := m.BarrierFEM(p.Barrier)
		if err != nil {
			return nil, err
		}
		structure = &spde.Barrier{Geometry: geo, Scaling: b.Scaling}
	} else {
		structure = &spde.Standard{Geometry: m.FEM()}
	}

	nobs := len(f.Observations)
	if nobs == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrInvalid)
	}
	px := make([]float64, nobs)
	py := make([]float64, nobs)
	y := make([]float64, nobs)
	ncov := len(f.Observations[0].Covariates)
	for i, o := range f.Observations {
		if len(o.Covariates) != ncov {
			return nil, fmt.Errorf("%w: observation %d has %d covariates, observation 0 has %d",
				ErrInvalid, i, len(o.Covariates), ncov)
		}
		px[i], py[i], y[i] = o.X, o.Y, o.Count
	}
	a, err := m.Projector(px, py)
	if err != nil {
		return nil, err
	}

	ncol, off := ncov+1, 1
	if f.NoIntercept {
		ncol, off = ncov, 0
	}
	if ncol == 0 {
		return nil, fmt.Errorf("%w: design has no columns", ErrInvalid)
	}
	x := mat.NewDense(nobs, ncol, nil)
	for i, o := range f.Observations {
		if off == 1 {
			x.Set(i, 0, 1)
		}
		for j, c := range o.Covariates {
			x.Set(i, j+off, c)
		}
	}

	p.Data = &model.Data{Y: y, Structure: structure, A: a, X: x}
	if err := p.Data.Validate(); err != nil {
		return nil, err
	}

	l := p.Data.Layout()
	pp := f.Parameters
	start := model.Params[float64]{
		Beta:      orZeros(pp.Beta, l.NBeta),
		LogTau:    pp.LogTau,
		LogKappa:  pp.LogKappa,
		LogSigmaE: pp.LogSigmaE,
		X:         orZeros(pp.X, l.NVertex),
		Epsilon:   orZeros(pp.Epsilon, l.NObs),
	}
	if p.Start, err = l.Pack(start); err != nil {
		return nil, err
	}
	return p, nil
}

func orZeros(v []float64, n int) []float64 {
	if v == nil {
		return make([]float64, n)
	}
	return v
}
