// Package frep turns shape scripts into export-ready geometry. App runs a
// script, then meshes every part it declares by dual contouring, or
// contours it when 2D output was requested and the part is flat.
package frep

import (
	"fmt"
	"sort"
	"time"

	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/contour"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/kernel"
	kfrep "github.com/chazu/frep/pkg/kernel/frep"
	ksdfx "github.com/chazu/frep/pkg/kernel/sdfx"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/script"
	"github.com/chazu/frep/pkg/tree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep")
}

// colorPalette assigns distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is the JSON form of a part's triangle mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// ContourData is the JSON form of a flat part's outline. Each loop is a
// flat x, y list and repeats its first point at the end.
type ContourData struct {
	Points   [][]float32 `json:"points"`
	PartName string      `json:"partName"`
	Color    string      `json:"color"`
}

// EvalErrorData is the JSON form of a script or meshing error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ParamData is a script parameter and its declared value.
type ParamData struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// EvalResult is everything one evaluation produces.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Contours []ContourData   `json:"contours"`
	Params   []ParamData     `json:"params"`
	Errors   []EvalErrorData `json:"errors"`
}

// Defaults for App.
const (
	DefaultMeshCells = 64
	DefaultBound     = 1.0
)

// Option configures an App.
type Option func(*options)

type options struct {
	bounds  kernel.Box3
	cells   int
	dims2   bool
	sdfx    bool
	timeout time.Duration
}

func defaultOptions() options {
	b := DefaultBound
	return options{
		bounds: kernel.Box3{Min: [3]float64{-b, -b, -b}, Max: [3]float64{b, b, b}},
		cells:  DefaultMeshCells,
	}
}

// WithBounds sets the box every part is sampled in.
func WithBounds(lo, hi [3]float64) Option {
	return func(o *options) {
		o.bounds = kernel.Box3{Min: lo, Max: hi}
	}
}

// WithMeshCells sets the number of samples along the longest side of the
// bounds.
func WithMeshCells(n int) Option {
	return func(o *options) {
		o.cells = n
	}
}

// Dims2 contours parts that do not depend on Z instead of meshing them.
func Dims2() Option {
	return func(o *options) {
		o.dims2 = true
	}
}

// WithSDFX meshes parts by marching cubes in sdfx instead of dual
// contouring. Sharp edges are rounded off; use it to cross-check meshes.
func WithSDFX() Option {
	return func(o *options) {
		o.sdfx = true
	}
}

// WithTimeout limits how long a script may run.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// App evaluates scripts. It is safe for concurrent use.
type App struct {
	engine *script.Engine
	opts   options
}

// NewApp creates an App.
func NewApp(opts ...Option) *App {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.cells = max(1, o.cells)
	return &App{engine: script.NewEngine(o.timeout), opts: o}
}

// Evaluate runs source and returns the geometry of every part, or the
// errors that stopped it.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Contours: []ContourData{},
		Params:   []ParamData{},
		Errors:   []EvalErrorData{},
	}

	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		tracer().Errorf("evaluate: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	for name, v := range res.Params {
		result.Params = append(result.Params, ParamData{Name: name, Value: v.Value()})
	}
	sort.Slice(result.Params, func(i, j int) bool { return result.Params[i].Name < result.Params[j].Name })

	k := kfrep.New(kfrep.WithStore(res.Store), kfrep.WithMeshCells(a.opts.cells))
	for i, p := range res.Parts {
		color := colorPalette[i%len(colorPalette)]
		if err := a.part(k, p, color, &result); err != nil {
			tracer().Errorf("part %q: %v", p.Name, err)
			result.Errors = append(result.Errors, EvalErrorData{
				Message: fmt.Sprintf("part %q: %v", p.Name, err),
			})
		}
	}
	return result
}

func (a *App) part(k *kfrep.Kernel, p script.Part, color string, out *EvalResult) error {
	if _, _, z := p.Shape.Uses(); a.opts.dims2 && !z {
		c, err := a.contours(p.Shape)
		if err != nil {
			return fmt.Errorf("contouring failed: %w", err)
		}
		cd := ContourData{Points: make([][]float32, 0, len(c.Loops)), PartName: p.Name, Color: color}
		for _, loop := range c.Loops {
			pts := make([]float32, 0, 2*len(loop))
			for _, v := range loop {
				pts = append(pts, float32(v.X), float32(v.Y))
			}
			cd.Points = append(cd.Points, pts)
		}
		out.Contours = append(out.Contours, cd)
		return nil
	}

	var m *kernel.Mesh
	var err error
	if a.opts.sdfx {
		m, err = ksdfx.Mesh(p.Shape, a.opts.bounds, a.opts.cells)
	} else {
		m, err = k.ToMesh(k.Wrap(p.Shape, a.opts.bounds))
	}
	if err != nil {
		return fmt.Errorf("meshing failed: %w", err)
	}
	out.Meshes = append(out.Meshes, MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		PartName: p.Name,
		Color:    color,
	})
	return nil
}

// contours samples t on the XY face of the bounds.
func (a *App) contours(t tree.Tree) (*contour.Contours, error) {
	b := a.opts.bounds
	size := max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	res := float64(a.opts.cells) / size
	r, err := region.New(
		interval.New(b.Min[0], b.Max[0]),
		interval.New(b.Min[1], b.Max[1]),
		interval.New(0, 0), res)
	if err != nil {
		return nil, err
	}
	return contour.Render(t, r)
}
