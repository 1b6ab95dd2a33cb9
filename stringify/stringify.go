// Package stringify renders a cell subgraph as JSON-like text.
//
// The output follows the graph, not the JSON grammar: property names and
// string values are emitted verbatim, with no quoting or escaping of
// special characters, and strings outside object keys carry no quotes at
// all. This is a known, deliberate limitation of the format: consumers
// are the runtime's own console and tests, not strict JSON parsers.
//
// Recursion depth is bounded only by graph depth. Cyclic graphs are not
// detected; the external evaluator never builds them.
package stringify

import (
	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/internal/pool"
)

// Stringify renders the cell subgraph rooted at h.
func Stringify(a *arena.Arena, h arena.Handle) string {
	buf := pool.GetTextBuffer()
	defer pool.PutTextBuffer(buf)

	Append(a, h, buf)

	return buf.String()
}

// Append renders the subgraph rooted at h into buf, so callers composing
// larger outputs (the JSON.stringify built-in, the console) can reuse one
// buffer.
func Append(a *arena.Arena, h arena.Handle, buf *pool.ByteBuffer) {
	if h == arena.None {
		buf.WriteString("undefined")
		return
	}

	switch a.KindOf(h) {
	case arena.KindUndefined:
		buf.WriteString("undefined")

	case arena.KindArray:
		buf.WriteString("[")
		length := a.ArrayLen(h)
		for i := 0; i < length; i++ {
			Append(a, a.ArrayItem(h, i), buf)
			if i < length-1 {
				buf.WriteString(",")
			}
		}
		buf.WriteString("]")

	case arena.KindObject:
		buf.WriteString("{")
		first := true
		a.Properties(h, func(name, value arena.Handle) bool {
			if !first {
				buf.WriteString(",")
			}
			first = false
			buf.WriteString(`"`)
			buf.WriteString(a.StringValue(name)) // emitted verbatim, unescaped
			buf.WriteString(`":`)
			Append(a, value, buf)

			return true
		})
		buf.WriteString("}")

	case arena.KindFunction:
		appendFunction(a, h, buf)

	default:
		buf.WriteString(a.Text(h))
	}
}

// appendFunction renders "function (p0,p1,...) " followed by the source
// body found under the reserved body-marker child, or "{}" when the
// function has no body child.
func appendFunction(a *arena.Arena, fn arena.Handle, buf *pool.ByteBuffer) {
	buf.WriteString("function (")

	body := arena.None
	firstParam := true
	for c := a.FirstChildOf(fn); c != arena.None; c = a.NextSiblingOf(c) {
		switch {
		case a.KindOf(c) == arena.KindFunctionParam:
			if !firstParam {
				buf.WriteString(",")
			}
			firstParam = false
			buf.WriteString(a.StringValue(c))
		case a.KindOf(c) == arena.KindString && a.StringEqual(c, arena.BodyMarker):
			body = a.FirstChildOf(c)
		}
	}

	buf.WriteString(") ")
	if body != arena.None {
		buf.WriteString(a.StringValue(body))
	} else {
		buf.WriteString("{}")
	}
}
