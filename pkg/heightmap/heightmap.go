// Package heightmap renders the top-down depth and normal images of an
// implicit solid.
//
// The volume is split in X and Y across the evaluators of a pool. Each
// worker walks its part from the top Z slab down, filling blocks whose
// interval bound is negative, skipping blocks that are positive or already
// hidden behind filled pixels, and sampling small blocks voxel by voxel.
package heightmap

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/region"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.heightmap")
}

// ErrAborted is returned when the abort flag was raised during a render.
var ErrAborted = errors.New("heightmap: render aborted")

// TopNormal is the packed normal for pixels clipped by the top of the
// region: straight up along +Z.
const TopNormal uint32 = 0xffff7f7f

// Render draws the solid over r with every pool evaluator transformed by m.
// abort may be nil.
func Render(pool *eval.Pool, r region.Region, abort *atomic.Bool, m eval.Matrix) (*DepthImage, *NormalImage, error) {
	depth := NewDepthImage(r.X.Size(), r.Y.Size())
	norm := NewNormalImage(r.X.Size(), r.Y.Size())
	pool.SetMatrix(m)

	parts := r.View().SplitXYN(pool.Size())
	var wg sync.WaitGroup
	for i, part := range parts {
		wg.Add(1)
		go func(w *worker, part region.Subregion) {
			defer wg.Done()
			w.recurse(part)
		}(&worker{e: pool.Get(i), depth: depth, norm: norm, abort: abort}, part)
	}
	wg.Wait()

	if abort != nil && abort.Load() {
		return nil, nil, ErrAborted
	}

	top := r.Z.Values[r.Z.Size()-1]
	for i, z := range depth.Pix {
		if z == top {
			norm.Pix[i] = TopNormal
		}
	}
	tracer().Debugf("heightmap: %dx%dx%d voxels over %d workers", r.X.Size(), r.Y.Size(), r.Z.Size(), len(parts))
	return depth, norm, nil
}

// worker renders one part of the image with its own evaluator. Parts do
// not overlap, so workers never write the same pixel.
type worker struct {
	e     *eval.Evaluator
	depth *DepthImage
	norm  *NormalImage
	abort *atomic.Bool

	// queued normal requests, flushed in batches
	px, py []int
	vals   []float64
}

// visit, when set, is called for every subregion a worker enters.
var visit func()

func (w *worker) recurse(s region.Subregion) {
	if w.abort != nil && w.abort.Load() {
		return
	}
	if visit != nil {
		visit()
	}
	if w.hidden(s) {
		return
	}
	if s.Voxels() <= eval.BatchSize {
		w.pixels(s)
		return
	}

	out := w.e.EvalInterval(s.X.Bounds, s.Y.Bounds, s.Z.Bounds)
	switch {
	case out.Hi < 0:
		w.fill(s)
	case out.Lo <= 0:
		w.e.Push()
		lo, hi := s.Split()
		w.recurse(hi)
		w.recurse(lo)
		w.e.Pop()
	}
}

// hidden reports whether every pixel of s is already at or above its top.
func (w *worker) hidden(s region.Subregion) bool {
	top := s.Z.Values[s.Z.Size()-1]
	for j := range s.Y.Values {
		for i := range s.X.Values {
			if w.depth.At(s.X.Min+i, s.Y.Min+j) < top {
				return false
			}
		}
	}
	return true
}

// pixels samples every visible column of s from the top down and records
// the first filled voxel.
func (w *worker) pixels(s region.Subregion) {
	nz := s.Z.Size()
	top := s.Z.Values[nz-1]
	visible := func(i, j int) bool {
		return w.depth.At(s.X.Min+i, s.Y.Min+j) < top
	}

	n := 0
	for i, x := range s.X.Values {
		for j, y := range s.Y.Values {
			if !visible(i, j) {
				continue
			}
			for k := nz - 1; k >= 0; k-- {
				w.e.Set(x, y, s.Z.Values[k], n)
				n++
			}
		}
	}
	w.vals = append(w.vals[:0], w.e.Values(n)...)

	n = 0
	for i, x := range s.X.Values {
		for j, y := range s.Y.Values {
			if !visible(i, j) {
				continue
			}
			for k := nz - 1; k >= 0; k-- {
				if w.vals[n+nz-1-k] < 0 {
					w.hit(s.X.Min+i, s.Y.Min+j, x, y, s.Z.Values[k])
					break
				}
			}
			n += nz
		}
	}
	w.flush()
}

// fill marks every pixel of s as filled up to the top of s.
func (w *worker) fill(s region.Subregion) {
	top := s.Z.Values[s.Z.Size()-1]
	for i, x := range s.X.Values {
		for j, y := range s.Y.Values {
			w.hit(s.X.Min+i, s.Y.Min+j, x, y, top)
		}
	}
	w.flush()
}

func (w *worker) hit(px, py int, x, y, z float64) {
	if w.depth.At(px, py) >= z {
		return
	}
	w.depth.Set(px, py, z)
	if len(w.px) == eval.BatchSize {
		w.flush()
	}
	w.e.Set(x, y, z, len(w.px))
	w.px = append(w.px, px)
	w.py = append(w.py, py)
}

// flush computes normals for the queued hits. It must run before the
// evaluator's point slots are reused.
func (w *worker) flush() {
	if len(w.px) == 0 {
		return
	}
	_, dx, dy, dz := w.e.Derivs(len(w.px))
	for i := range w.px {
		w.norm.Set(w.px[i], w.py[i], pack(dx[i], dy[i], dz[i]))
	}
	w.px, w.py = w.px[:0], w.py[:0]
}

func pack(dx, dy, dz float64) uint32 {
	l := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return TopNormal
	}
	c := func(d float64) uint32 { return uint32(255 * (d/(2*l) + 0.5)) }
	return 0xff<<24 | c(dz)<<16 | c(dy)<<8 | c(dx)
}
