package renderer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazu/frep/pkg/eval"
)

// Defaults for the scheduler's tunables.
const (
	DefaultBaseLevel    = 4
	DefaultMaxBaseLevel = 8
	DefaultFastRender   = 10 * time.Millisecond
	DefaultSlowRender   = 20 * time.Millisecond
)

// Option configures a Renderer during creation.
type Option func(*options)

type options struct {
	poolSize     int
	baseLevel    int
	maxBaseLevel int
	fast, slow   time.Duration
	executor     Executor
	registerer   prometheus.Registerer
	now          func() time.Time
	inactive     bool
}

func defaultOptions() options {
	return options{
		poolSize:     eval.DefaultPoolSize,
		baseLevel:    DefaultBaseLevel,
		maxBaseLevel: DefaultMaxBaseLevel,
		fast:         DefaultFastRender,
		slow:         DefaultSlowRender,
		executor:     nil, // shared executor
		now:          time.Now,
	}
}

// WithPoolSize sets the number of evaluators, which is also the number of
// workers a single render is split across.
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithBaseLevel sets the starting base level. Level n renders at 1/2ⁿ of
// the requested pixel resolution.
func WithBaseLevel(level int) Option {
	return func(o *options) {
		o.baseLevel = level
	}
}

// WithMaxBaseLevel caps how coarse the level-of-detail controller may go.
func WithMaxBaseLevel(level int) Option {
	return func(o *options) {
		o.maxBaseLevel = level
	}
}

// WithThresholds sets the render times below which the base level is made
// finer and above which it is made coarser.
func WithThresholds(fast, slow time.Duration) Option {
	return func(o *options) {
		o.fast, o.slow = fast, slow
	}
}

// WithExecutor runs render jobs on e instead of the shared executor.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithRegisterer registers the renderer's metrics on reg. Without it the
// metrics are kept but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithClock replaces time.Now for measuring render times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Inactive creates the renderer deactivated: tasks are queued but nothing
// runs until Activate is called.
func Inactive() Option {
	return func(o *options) {
		o.inactive = true
	}
}
