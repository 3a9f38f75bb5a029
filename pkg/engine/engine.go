// Package engine provides the Lisp evaluation engine for tendril scenes.
// It wraps zygomys in a sandboxed environment and produces a Setup (scene
// surfaces, growth profile and vine seeds) from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/tendril/pkg/kernel/sdfx"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// DefaultSurfaceCells is the marching cubes resolution used when a script
// turns a solid into a mesh surface without giving :cells.
const DefaultSurfaceCells = 64

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
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

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
}

// Seed is a vine start requested by a script.
type Seed struct {
	Position  v3.Vec
	Direction v3.Vec
	Adhesion  v3.Vec
}

// Paint is a brush stroke that forces the first root of a seed's vine to
// grow to Position before tick Tick.
type Paint struct {
	Seed     int
	Position v3.Vec
	Normal   v3.Vec
	Tick     int
}

// ForcedBranch forks a random branch off a seed's vine before tick Tick.
type ForcedBranch struct {
	Seed int
	Tick int
}

// Setup is everything a script describes.
type Setup struct {
	Scene    *scene.Scene
	Profile  profile.Profile
	Seeds    []Seed
	Paints   []Paint
	Branches []ForcedBranch
	Warnings []EvalWarning
}

func newSetup() *Setup {
	return &Setup{Scene: scene.New(), Profile: profile.Default()}
}

// Engine wraps the zygomys interpreter for scene evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate takes Lisp source code and produces a new Setup.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns setup + nil errors + nil error
//   - On parse/eval failure: returns nil setup + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Setup, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source)
		ch <- evalResult{setup: s, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Setup, []EvalError, error) {
	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return newSetup(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := &builder{
		setup: newSetup(),
		cells: DefaultSurfaceCells,
		k:     sdfx.New(),
	}
	registerBuiltins(env, b)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	if len(b.setup.Seeds) == 0 {
		b.setup.Warnings = append(b.setup.Warnings, EvalWarning{Message: "script defines no seeds"})
	}
	if b.setup.Scene.Len() == 0 {
		b.setup.Warnings = append(b.setup.Warnings, EvalWarning{Message: "script defines no surfaces"})
	}
	return b.setup, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{
			Line:    line,
			Message: strings.TrimSpace(m[2]),
		}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{
			Line:    line,
			Message: strings.TrimSpace(m[2]),
		}}
	}

	// Fallback: no line info available.
	return []EvalError{{
		Message: strings.TrimSpace(msg),
	}}
}
