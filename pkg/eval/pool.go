package eval

import "github.com/chazu/frep/pkg/tree"

// DefaultPoolSize is the number of evaluators a renderer keeps per tree.
const DefaultPoolSize = 8

// Pool holds independent evaluators for one tree so that several
// goroutines can evaluate it at once, one evaluator each.
type Pool struct {
	evals []*Evaluator
}

// NewPool builds n evaluators for t. The tape is flattened once and shared.
func NewPool(t tree.Tree, n int) *Pool {
	if n < 1 {
		n = 1
	}
	first := New(t)
	p := &Pool{evals: []*Evaluator{first}}
	for i := 1; i < n; i++ {
		p.evals = append(p.evals, first.Clone())
	}
	return p
}

// Size returns the number of evaluators.
func (p *Pool) Size() int { return len(p.evals) }

// Get returns evaluator i.
func (p *Pool) Get(i int) *Evaluator { return p.evals[i] }

// SetMatrix sets the transform on every evaluator.
func (p *Pool) SetMatrix(m Matrix) {
	for _, e := range p.evals {
		e.SetMatrix(m)
	}
}

// UpdateVars rebinds variables on every evaluator and reports whether any
// value changed.
func (p *Pool) UpdateVars(vars map[tree.ID]float64) bool {
	changed := false
	for _, e := range p.evals {
		if e.UpdateVars(vars) {
			changed = true
		}
	}
	return changed
}
