// Package builtin resolves (receiver-kind, method-name) pairs to built-in
// behavior over the cell graph.
//
// The dispatcher sits between the external parser and the arena: when it
// recognizes a call it consumes the call's argument list through the
// Parser interface and returns a result cell; when it does not, it
// consumes nothing and reports unhandled, letting the caller fall back to
// user-defined resolution. A handled call always yields a live cell; an
// explicit undefined cell stands in for "no semantic result".
//
// Resolution order: receiver-less free functions first, then statics
// qualified by receiver identity (the registered class cells), then
// universal properties (length), then kind-specific instance methods.
package builtin

import (
	"math/rand"
	"strconv"

	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/internal/options"
	"github.com/minivm/cello/stringify"
)

// Parser is the dispatcher's window onto the external single-token-
// lookahead parser. Implementations must leave their position unchanged
// unless a method is called.
type Parser interface {
	// MatchIdent consumes the pending identifier token. Property-style
	// built-ins (length) call it instead of parsing a call.
	MatchIdent() error

	// ParseSingleArg parses a one-argument call "(expr)" and returns the
	// evaluated argument cell. The caller owns the returned reference.
	ParseSingleArg() (arena.Handle, error)

	// ParseEmptyCall parses a zero-argument call "()".
	ParseEmptyCall() error
}

// Evaluator runs source text held in a cell and returns the result cell,
// or None when evaluation produced no value.
type Evaluator interface {
	Eval(code arena.Handle) (arena.Handle, error)
}

// Classes holds the identity cells of the built-in classes. Statics match
// on receiver identity, not kind: `Integer.parseInt` only resolves on the
// one cell registered as the Integer class.
type Classes struct {
	Integer arena.Handle
	Math    arena.Handle
	JSON    arena.Handle
}

// Dispatcher resolves built-in calls over one arena.
type Dispatcher struct {
	a       *arena.Arena
	classes Classes
	eval    Evaluator
	randFn  func() float64
}

// Option configures a Dispatcher.
type Option = options.Option[*Dispatcher]

// WithRandom replaces the Math.random source, which tests use to pin
// results.
func WithRandom(fn func() float64) Option {
	return options.NoError(func(d *Dispatcher) {
		d.randFn = fn
	})
}

// NewDispatcher creates a dispatcher over a. The evaluator backs the free
// `eval` built-in and may be nil, in which case `eval` is unhandled.
func NewDispatcher(a *arena.Arena, classes Classes, eval Evaluator, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		a:       a,
		classes: classes,
		eval:    eval,
		randFn:  rand.Float64,
	}
	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}

	return d, nil
}

// Call resolves the method name against recv (None for a free function).
//
// When the call is recognized, Call consumes its arguments from p and
// returns (result, true, err); the caller owns the result reference. When
// it is not, Call returns (None, false, nil) having consumed nothing, and
// the caller tries its own resolution next.
func (d *Dispatcher) Call(recv arena.Handle, name string, p Parser) (arena.Handle, bool, error) {
	if recv == arena.None {
		return d.callFree(name, p)
	}

	if h, ok, err := d.callStatic(recv, name, p); ok || err != nil {
		return h, ok, err
	}

	// Universal properties, available on any receiver that has them.
	if name == "length" {
		switch d.a.KindOf(recv) {
		case arena.KindArray:
			if err := p.MatchIdent(); err != nil {
				return arena.None, true, err
			}

			return d.handled(d.a.NewInt(int64(d.a.ArrayLen(recv))))
		case arena.KindString:
			if err := p.MatchIdent(); err != nil {
				return arena.None, true, err
			}

			return d.handled(d.a.NewInt(int64(d.a.StringLen(recv))))
		}
	}

	return d.callInstance(recv, name, p)
}

// callFree resolves receiver-less built-ins.
func (d *Dispatcher) callFree(name string, p Parser) (arena.Handle, bool, error) {
	if name != "eval" || d.eval == nil {
		return arena.None, false, nil
	}

	code, err := p.ParseSingleArg()
	if err != nil {
		return arena.None, true, err
	}
	result, err := d.eval.Eval(code)
	d.a.Unref(code)
	if err != nil {
		return arena.None, true, err
	}
	if result == arena.None {
		return d.handled(d.a.NewUndefined())
	}

	return result, true, nil
}

// callStatic resolves class statics by receiver identity.
func (d *Dispatcher) callStatic(recv arena.Handle, name string, p Parser) (arena.Handle, bool, error) {
	switch {
	case recv == d.classes.Integer && name == "parseInt":
		v, err := p.ParseSingleArg()
		if err != nil {
			return arena.None, true, err
		}
		text := d.a.Text(v)
		d.a.Unref(v)
		parsed, _ := strconv.ParseInt(text, 0, 64) // 0 on malformed input

		return d.handled(d.a.NewInt(parsed))

	case recv == d.classes.Math && name == "random":
		if err := p.ParseEmptyCall(); err != nil {
			return arena.None, true, err
		}

		return d.handled(d.a.NewFloat(d.randFn()))

	case recv == d.classes.JSON && name == "stringify":
		v, err := p.ParseSingleArg()
		if err != nil {
			return arena.None, true, err
		}
		text := stringify.Stringify(d.a, v)
		d.a.Unref(v)

		return d.handled(d.a.NewString(text))
	}

	return arena.None, false, nil
}

// callInstance resolves kind-specific instance methods.
func (d *Dispatcher) callInstance(recv arena.Handle, name string, p Parser) (arena.Handle, bool, error) {
	kind := d.a.KindOf(recv)

	if kind == arena.KindString && name == "charAt" {
		v, err := p.ParseSingleArg()
		if err != nil {
			return arena.None, true, err
		}
		idx := int(d.a.Int(v))
		d.a.Unref(v)

		if b, ok := d.a.CharAt(recv, idx); ok {
			return d.handled(d.a.NewString(string(b)))
		}

		return d.handled(d.a.NewString(""))
	}

	if (kind == arena.KindString || kind == arena.KindObject) && name == "clone" {
		if err := p.ParseEmptyCall(); err != nil {
			return arena.None, true, err
		}

		return d.handled(d.a.Copy(recv))
	}

	if kind == arena.KindArray {
		switch name {
		case "contains":
			v, err := p.ParseSingleArg()
			if err != nil {
				return arena.None, true, err
			}
			_, found := d.a.ArrayIndexOf(recv, v)
			d.a.Unref(v)

			return d.handled(d.a.NewBool(found))

		case "indexOf":
			v, err := p.ParseSingleArg()
			if err != nil {
				return arena.None, true, err
			}
			idx, found := d.a.ArrayIndexOf(recv, v)
			d.a.Unref(v)

			if !found {
				return d.handled(d.a.NewUndefined())
			}

			return d.handled(d.a.NewInt(int64(idx)))
		}
	}

	return arena.None, false, nil
}

// handled adapts a constructor result to Call's return shape.
func (d *Dispatcher) handled(h arena.Handle, err error) (arena.Handle, bool, error) {
	return h, true, err
}
