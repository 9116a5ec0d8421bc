// Package script turns Lisp source into expression trees. It wraps a
// sandboxed zygomys interpreter with a small shape vocabulary: coordinate
// functions, arithmetic on shapes and numbers, CSG and a few primitives.
//
//	(def r (param "radius" 0.5))
//	(part "ball" (sphere r))
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/tree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.script")
}

// EvalError is a problem in user code, such as a parse error or a
// runtime error raised by a builtin.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Part is a named shape declared with (part name shape).
type Part struct {
	Name  string
	Shape tree.Tree
}

// Result is the output of a successful evaluation.
type Result struct {
	Store *tree.Store
	// Parts lists declared parts in order. When the script declares none
	// and its last value is a shape, that shape is the only part, named
	// "shape".
	Parts []Part
	// Params maps parameter names to their variable nodes.
	Params map[string]tree.Tree
}

// Engine evaluates scripts. It is safe for concurrent use; every call to
// Evaluate runs in a fresh sandbox.
type Engine struct {
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// DefaultTimeout is the hard limit for a single evaluation.
const DefaultTimeout = 5 * time.Second

// NewEngine creates an engine. A timeout of zero selects DefaultTimeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{timeout: timeout}
}

// Evaluate runs source and collects the shapes it declares.
//
//   - On success it returns a result and no errors.
//   - Problems in the script come back as EvalErrors with a nil result.
//   - A timeout, a superseded evaluation or an interpreter panic is
//     returned as error.
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("script: panic during evaluation: %v", r)}
			}
		}()
		res, evalErrs := evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs}
	}()
	return e.wait(ch, gen)
}

func evaluate(source string) (*Result, []EvalError) {
	s := &session{
		store:  tree.NewStore(),
		params: map[string]tree.Tree{},
	}
	if strings.TrimSpace(source) == "" {
		return s.result(), nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	s.register(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err)
	}
	last, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err)
	}
	if len(s.parts) == 0 {
		if sh, ok := last.(*sexpShape); ok {
			s.parts = append(s.parts, Part{Name: "shape", Shape: sh.t})
		}
	}
	tracer().Debugf("script: %d parts, %d params, %d nodes", len(s.parts), len(s.params), s.store.Len())
	return s.result(), nil
}

// linePattern matches zygomys messages like "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError turns an interpreter error into EvalErrors, keeping
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
