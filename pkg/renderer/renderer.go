// Package renderer schedules interactive heightmap renders of one tree.
//
// A Renderer runs at most one render at a time. Requests that arrive while
// a render is in flight are coalesced into a single pending task. Each
// request first renders at a coarse base level; once that completes the
// renderer refines the same view one level at a time down to level 0,
// and any new request aborts a refinement in flight. New requests never
// abort a base-level render, so the display always has a recent image.
// The base level itself tracks measured render times.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npillmayer/schuko/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/heightmap"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/tree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.renderer")
}

const otelName = "github.com/chazu/frep/pkg/renderer"

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Rendering
	// PendingNext is Rendering with a task waiting to run.
	PendingNext
	// PendingDelete is Rendering with destruction requested.
	PendingDelete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case PendingNext:
		return "pending-next"
	case PendingDelete:
		return "pending-delete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Task is one render request.
type Task struct {
	// Matrix maps model space to the view cube [-1, 1]³.
	Matrix        eval.Matrix
	Width, Height int
	Level         int

	refinement bool
}

// Result is a finished render.
type Result struct {
	Owner any
	// Depth is normalised: 0 nearest, 1 where nothing was hit.
	Depth *heightmap.DepthImage
	Norm  *heightmap.NormalImage
	// Transform maps the view cube back to model space.
	Transform eval.Matrix
	Level     int
	Elapsed   time.Duration
}

// Renderer owns an evaluator pool for one tree and schedules renders of it.
type Renderer struct {
	owner   any
	pool    *eval.Pool
	opts    options
	exec    Executor
	metrics *metrics
	render  func(Task, *atomic.Bool) (Result, error)

	results chan Result
	done    chan struct{}

	mu        sync.Mutex
	state     State
	active    bool
	next      Task
	hasNext   bool
	last      Task
	refine    bool // the last task completed and may be refined
	refining  bool // the task in flight is a refinement
	inflight  *atomic.Bool
	baseLevel int
	vars      map[tree.ID]float64
	staged    map[tree.ID]float64
	destroyed bool
}

// New creates a renderer for t. owner is passed through to every Result.
func New(owner any, t tree.Tree, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.maxBaseLevel = max(0, o.maxBaseLevel)
	r := &Renderer{
		owner:     owner,
		pool:      eval.NewPool(t, o.poolSize),
		opts:      o,
		exec:      o.executor,
		metrics:   newMetrics(owner, o.registerer),
		results:   make(chan Result, 1),
		done:      make(chan struct{}),
		active:    !o.inactive,
		baseLevel: clampLevel(o.baseLevel, o.maxBaseLevel),
	}
	if r.exec == nil {
		r.exec = SharedExecutor()
	}
	r.render = r.renderHeightmap
	r.vars = r.pool.Get(0).Vars()
	r.metrics.baseLevel.Set(float64(r.baseLevel))
	return r
}

func clampLevel(l, hi int) int {
	return max(0, min(l, hi))
}

// AdjustLevel is the level-of-detail controller: a render faster than fast
// makes the base level one finer (down to 0), one slower than slow makes
// it one coarser, anything in between keeps it.
func AdjustLevel(base int, elapsed, fast, slow time.Duration) int {
	switch {
	case elapsed < fast && base > 0:
		return base - 1
	case elapsed > slow:
		return base + 1
	}
	return base
}

// NormalizeDepth maps raw heights in place onto [0, 1]: empty pixels go to
// 1, heights h to (1-h)/2, and pixels at the top sample zTop to 0.
func NormalizeDepth(d *heightmap.DepthImage, zTop float64) {
	for i, z := range d.Pix {
		switch {
		case math.IsInf(z, -1):
			d.Pix[i] = 1
		case z == zTop:
			d.Pix[i] = 0
		default:
			d.Pix[i] = (1 - z) / 2
		}
	}
}

// Results delivers finished renders. Only the newest unread result is
// kept.
func (r *Renderer) Results() <-chan Result { return r.results }

// Result claims the newest unread result, if any.
func (r *Renderer) Result() (Result, bool) {
	select {
	case res := <-r.results:
		return res, true
	default:
		return Result{}, false
	}
}

// Done is closed once the renderer has been destroyed.
func (r *Renderer) Done() <-chan struct{} { return r.done }

// State returns the current scheduler state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// BaseLevel returns the level new requests start at.
func (r *Renderer) BaseLevel() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseLevel
}

// Enqueue requests a render of the view m at w x h pixels. It replaces any
// pending request and aborts a refinement in flight.
func (r *Renderer) Enqueue(m eval.Matrix, w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.state == PendingDelete {
		return
	}
	r.next = Task{Matrix: m, Width: w, Height: h, Level: r.baseLevel}
	r.hasNext = true
	if r.state != Idle {
		r.state = PendingNext
		if r.refining {
			r.inflight.Store(true)
		}
	}
	r.checkNextLocked()
}

// UpdateVars rebinds variables and reports whether any value changed. The
// new values take effect with the next render that starts.
func (r *Renderer) UpdateVars(vars map[tree.ID]float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for id, v := range vars {
		old, ok := r.vars[id]
		if !ok || old == v {
			continue
		}
		r.vars[id] = v
		if r.staged == nil {
			r.staged = map[tree.ID]float64{}
		}
		r.staged[id] = v
		changed = true
	}
	if changed && r.state == Idle {
		r.pool.UpdateVars(r.staged)
		r.staged = nil
	}
	return changed
}

// Activate allows queued tasks to run.
func (r *Renderer) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.checkNextLocked()
}

// Deactivate stops new renders from starting. A render in flight finishes.
func (r *Renderer) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// DeleteWhenIdle destroys the renderer now if nothing is running, or
// otherwise aborts the render in flight and destroys it when it returns.
func (r *Renderer) DeleteWhenIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	if r.state == Idle {
		r.destroyLocked()
		return
	}
	r.inflight.Store(true)
	r.state = PendingDelete
}

func (r *Renderer) destroyLocked() {
	r.destroyed = true
	r.hasNext = false
	r.state = Idle
	close(r.done)
	tracer().Infof("renderer %v: destroyed", r.owner)
}

// checkNextLocked starts the next task if the renderer is free: a pending
// request first, otherwise a refinement of the last completed one.
func (r *Renderer) checkNextLocked() {
	if r.destroyed || !r.active || r.state != Idle {
		return
	}
	if !r.hasNext && r.refine && r.last.Level > 0 {
		r.next = r.last
		r.next.Level--
		r.next.refinement = true
		r.hasNext = true
	}
	if !r.hasNext {
		return
	}

	task := r.next
	r.hasNext = false
	r.refine = false
	r.state = Rendering
	if r.staged != nil {
		r.pool.UpdateVars(r.staged)
		r.staged = nil
	}

	// Only refinements are aborted by new requests; any render is
	// aborted by deletion.
	r.refining = task.refinement
	flag := new(atomic.Bool)
	r.inflight = flag
	r.exec.Submit(func() { r.run(task, flag) })
}

func (r *Renderer) run(task Task, abort *atomic.Bool) {
	_, span := otel.Tracer(otelName).Start(context.Background(), "renderer.render",
		trace.WithAttributes(
			attribute.Int("level", task.Level),
			attribute.Int("width", task.Width),
			attribute.Int("height", task.Height),
		))
	start := r.opts.now()
	res, err := r.render(task, abort)
	elapsed := r.opts.now().Sub(start)

	aborted := errors.Is(err, heightmap.ErrAborted)
	span.SetAttributes(attribute.Bool("aborted", aborted))
	if err != nil && !aborted {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
	}
	span.End()

	r.finish(task, res, elapsed, err)
}

func (r *Renderer) finish(task Task, res Result, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err == nil:
		res.Owner, res.Level, res.Elapsed = r.owner, task.Level, elapsed
		r.publish(res)
		r.metrics.renders.WithLabelValues("completed").Inc()
		r.metrics.duration.WithLabelValues(level(task.Level)).Observe(elapsed.Seconds())

		r.baseLevel = clampLevel(AdjustLevel(r.baseLevel, elapsed, r.opts.fast, r.opts.slow), r.opts.maxBaseLevel)
		r.metrics.baseLevel.Set(float64(r.baseLevel))
		r.last, r.refine = task, true
		tracer().Debugf("renderer %v: level %d in %v, base level now %d", r.owner, task.Level, elapsed, r.baseLevel)
	case errors.Is(err, heightmap.ErrAborted):
		r.metrics.renders.WithLabelValues("aborted").Inc()
		tracer().Debugf("renderer %v: level %d aborted", r.owner, task.Level)
	default:
		r.metrics.renders.WithLabelValues("failed").Inc()
		tracer().Errorf("renderer %v: level %d failed: %v", r.owner, task.Level, err)
	}

	r.refining, r.inflight = false, nil
	if r.state == PendingDelete {
		r.destroyLocked()
		return
	}
	r.state = Idle
	r.checkNextLocked()
}

// publish replaces any unread result with res.
func (r *Renderer) publish(res Result) {
	select {
	case <-r.results:
	default:
	}
	r.results <- res
}

// renderHeightmap renders the view cube for a task: the level picks the
// sample density, and Z is flipped so that higher depth values are nearer
// the viewer.
func (r *Renderer) renderHeightmap(task Task, abort *atomic.Bool) (Result, error) {
	scale := float64(int(1) << task.Level)
	rx := max(0.5, float64(task.Width)/2/scale)
	ry := max(0.5, float64(task.Height)/2/scale)
	cube := interval.New(-1, 1)
	reg, err := region.NewAnisotropic(cube, cube, cube, rx, ry, max(rx, ry))
	if err != nil {
		return Result{}, fmt.Errorf("renderer: view region: %w", err)
	}

	inv, err := task.Matrix.Inverse()
	if err != nil {
		return Result{}, fmt.Errorf("renderer: %w", err)
	}
	m := inv.Mul(eval.Scale(1, 1, -1))

	depth, norm, err := heightmap.Render(r.pool, reg, abort, m)
	if err != nil {
		return Result{}, err
	}
	NormalizeDepth(depth, reg.Z.Values[reg.Z.Size()-1])
	return Result{Depth: depth, Norm: norm, Transform: inv}, nil
}
