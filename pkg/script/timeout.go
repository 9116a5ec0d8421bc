package script

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when a script runs longer than the engine's
	// timeout. The interpreter goroutine is abandoned.
	ErrTimeout = errors.New("script: evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started before
	// this one finished.
	ErrSuperseded = errors.New("script: evaluation superseded by newer request")
)

type evalResult struct {
	result *Result
	errors []EvalError
	err    error
}

// wait blocks for the result of generation gen. Results of generations
// that are no longer current are discarded.
func (e *Engine) wait(ch <-chan evalResult, gen uint64) (*Result, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return nil, nil, ErrSuperseded
		}
		if res.err != nil {
			tracer().Errorf("%v", res.err)
		}
		return res.result, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}
