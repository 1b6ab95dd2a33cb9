package arena

import (
	"math"
	"strconv"
)

// BodyMarker is the reserved property name under which a function cell
// stores its source-text body. It is a naming convention, not a kind tag:
// the serializer and dispatcher find the body by comparing child names
// against this sentinel.
const BodyMarker = "#code"

// NewNull allocates a null cell.
func (a *Arena) NewNull() (Handle, error) {
	return a.alloc(KindNull)
}

// NewUndefined allocates an undefined cell. Built-ins return this, never
// handle 0, when their semantic result is absent.
func (a *Arena) NewUndefined() (Handle, error) {
	return a.alloc(KindUndefined)
}

// NewInt allocates an integer cell.
func (a *Arena) NewInt(v int64) (Handle, error) {
	h, err := a.alloc(KindInt)
	if err != nil {
		return None, err
	}
	a.engine.PutUint64(a.cell(h).Data[:], uint64(v))

	return h, nil
}

// NewBool allocates an integer cell holding 1 or 0. The data model has no
// boolean kind.
func (a *Arena) NewBool(v bool) (Handle, error) {
	if v {
		return a.NewInt(1)
	}

	return a.NewInt(0)
}

// NewFloat allocates a float cell.
func (a *Arena) NewFloat(v float64) (Handle, error) {
	h, err := a.alloc(KindFloat)
	if err != nil {
		return None, err
	}
	a.engine.PutUint64(a.cell(h).Data[:], math.Float64bits(v))

	return h, nil
}

// Int returns the integer payload of the cell at h. Float cells are
// truncated; string cells are parsed, yielding 0 on failure.
func (a *Arena) Int(h Handle) int64 {
	c := a.cell(h)
	switch c.Kind {
	case KindInt:
		return int64(a.engine.Uint64(c.Data[:]))
	case KindFloat:
		return int64(math.Float64frombits(a.engine.Uint64(c.Data[:])))
	case KindString:
		v, _ := strconv.ParseInt(a.StringValue(h), 0, 64)
		return v
	default:
		return 0
	}
}

// Float returns the float payload of the cell at h.
func (a *Arena) Float(h Handle) float64 {
	c := a.cell(h)
	switch c.Kind {
	case KindFloat:
		return math.Float64frombits(a.engine.Uint64(c.Data[:]))
	case KindInt:
		return float64(int64(a.engine.Uint64(c.Data[:])))
	default:
		return 0
	}
}

// Text returns the scalar text representation of the cell at h: the literal
// null/undefined keywords, formatted numbers, or the raw string payload.
// Containers render through the stringify package, not here.
func (a *Arena) Text(h Handle) string {
	if h == None {
		return "undefined"
	}
	c := a.cell(h)
	switch c.Kind {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindInt:
		return strconv.FormatInt(a.Int(h), 10)
	case KindFloat:
		return strconv.FormatFloat(a.Float(h), 'f', -1, 64)
	case KindString, KindStringExt, KindFunctionParam:
		return a.StringValue(h)
	default:
		return ""
	}
}

// appendChild links child onto parent's child list. Only container kinds
// use FirstChild/LastChild as list endpoints.
func (a *Arena) appendChild(parent, child Handle) {
	p := a.cell(parent)
	if p.FirstChild == None {
		p.FirstChild = child
		p.LastChild = child

		return
	}
	a.cell(p.LastChild).NextSibling = child
	p.LastChild = child
}

// NewArray allocates an empty array cell.
func (a *Arena) NewArray() (Handle, error) {
	return a.alloc(KindArray)
}

// ArrayPush appends elem to the array at h. Ownership of the caller's
// reference transfers to the array.
func (a *Arena) ArrayPush(h, elem Handle) error {
	if a.KindOf(h) != KindArray {
		return ErrBadHandle
	}
	a.appendChild(h, elem)

	return nil
}

// ArrayLen returns the number of elements in the array at h.
func (a *Arena) ArrayLen(h Handle) int {
	n := 0
	for e := a.cell(h).FirstChild; e != None; e = a.cell(e).NextSibling {
		n++
	}

	return n
}

// ArrayItem returns the element at index idx, or None when out of range.
// The returned handle is borrowed; callers that retain it must Ref it.
func (a *Arena) ArrayItem(h Handle, idx int) Handle {
	if idx < 0 {
		return None
	}
	e := a.cell(h).FirstChild
	for e != None && idx > 0 {
		e = a.cell(e).NextSibling
		idx--
	}

	return e
}

// ArrayIndexOf returns the index of the first element equal to val, or
// ok=false when no element matches.
func (a *Arena) ArrayIndexOf(h, val Handle) (int, bool) {
	idx := 0
	for e := a.cell(h).FirstChild; e != None; e = a.cell(e).NextSibling {
		if a.ValueEqual(e, val) {
			return idx, true
		}
		idx++
	}

	return 0, false
}

// NewObject allocates an empty object cell.
func (a *Arena) NewObject() (Handle, error) {
	return a.alloc(KindObject)
}

// findProperty returns the name cell for the given property, or None.
func (a *Arena) findProperty(obj Handle, name string) Handle {
	for p := a.cell(obj).FirstChild; p != None; p = a.cell(p).NextSibling {
		if a.StringEqual(p, name) {
			return p
		}
	}

	return None
}

// ObjectSet sets property name on the object at h. The property is stored
// as a name cell whose FirstChild holds the value, one extra indirection
// versus bare array elements. Ownership of the caller's value reference
// transfers to the object; an existing value under the same name is
// released.
func (a *Arena) ObjectSet(h Handle, name string, val Handle) error {
	if a.KindOf(h) != KindObject && a.KindOf(h) != KindFunction {
		return ErrBadHandle
	}

	if p := a.findProperty(h, name); p != None {
		old := a.cell(p).FirstChild
		a.cell(p).FirstChild = val
		a.Unref(old)

		return nil
	}

	prop, err := a.newTextCell(KindString, name)
	if err != nil {
		return err
	}
	a.cell(prop).FirstChild = val
	a.appendChild(h, prop)

	return nil
}

// ObjectGet returns the value of property name, or None when the object has
// no such property. The returned handle is borrowed.
func (a *Arena) ObjectGet(h Handle, name string) Handle {
	p := a.findProperty(h, name)
	if p == None {
		return None
	}

	return a.cell(p).FirstChild
}

// Properties iterates an object's name cells in child-list order, calling
// fn with each property's name cell and value handle.
func (a *Arena) Properties(h Handle, fn func(name, value Handle) bool) {
	for p := a.cell(h).FirstChild; p != None; p = a.cell(p).NextSibling {
		if !fn(p, a.cell(p).FirstChild) {
			return
		}
	}
}

// FirstChildOf returns the cell's FirstChild link. The handle is borrowed.
func (a *Arena) FirstChildOf(h Handle) Handle {
	return a.cell(h).FirstChild
}

// NextSiblingOf returns the cell's NextSibling link. The handle is borrowed.
func (a *Arena) NextSiblingOf(h Handle) Handle {
	return a.cell(h).NextSibling
}

// NewFunction allocates a function cell with the given parameter names and
// source-text body. Parameters keep their declaration order; the body is
// stored under the BodyMarker sentinel name. An empty body stores no body
// child at all.
func (a *Arena) NewFunction(params []string, body string) (Handle, error) {
	fn, err := a.alloc(KindFunction)
	if err != nil {
		return None, err
	}

	for _, name := range params {
		p, perr := a.newTextCell(KindFunctionParam, name)
		if perr != nil {
			a.Unref(fn)
			return None, perr
		}
		a.appendChild(fn, p)
	}

	if body != "" {
		text, terr := a.NewString(body)
		if terr != nil {
			a.Unref(fn)
			return None, terr
		}
		if serr := a.ObjectSet(fn, BodyMarker, text); serr != nil {
			a.Unref(text)
			a.Unref(fn)

			return None, serr
		}
	}

	return fn, nil
}

// FunctionBody returns the handle of the function's body text, found by
// the BodyMarker naming convention, or None when the function has no body
// child.
func (a *Arena) FunctionBody(fn Handle) Handle {
	for c := a.cell(fn).FirstChild; c != None; c = a.cell(c).NextSibling {
		cc := a.cell(c)
		if cc.Kind == KindString && a.StringEqual(c, BodyMarker) {
			return cc.FirstChild
		}
	}

	return None
}

// NewArrayBuffer allocates an array-buffer cell backed by the given bytes,
// stored as a string chain under FirstChild.
func (a *Arena) NewArrayBuffer(data []byte) (Handle, error) {
	buf, err := a.alloc(KindArrayBuffer)
	if err != nil {
		return None, err
	}
	backing, err := a.NewString(string(data))
	if err != nil {
		a.Unref(buf)
		return None, err
	}
	a.cell(buf).FirstChild = backing

	return buf, nil
}

// BufferBytes returns a copy of the bytes backing the array buffer at h.
func (a *Arena) BufferBytes(h Handle) []byte {
	if a.KindOf(h) != KindArrayBuffer {
		return nil
	}

	return []byte(a.StringValue(a.cell(h).FirstChild))
}

// ValueEqual reports value equality between two cells: numeric kinds
// compare numerically, strings by content, everything else by identity.
func (a *Arena) ValueEqual(x, y Handle) bool {
	if x == y {
		return true
	}
	if x == None || y == None {
		return false
	}
	kx, ky := a.cell(x).Kind, a.cell(y).Kind

	numeric := func(k Kind) bool { return k == KindInt || k == KindFloat }
	if numeric(kx) && numeric(ky) {
		if kx == KindInt && ky == KindInt {
			return a.Int(x) == a.Int(y)
		}

		return a.Float(x) == a.Float(y)
	}

	if a.cell(x).isStringLike() && a.cell(y).isStringLike() {
		return a.StringEqual(x, a.StringValue(y))
	}

	return false
}

// Copy clones the cell at h. Scalars and strings are duplicated outright
// (including continuation chains). Object properties get fresh name cells
// sharing the original values with a bumped reference; array elements are
// copied recursively, since bare elements carry the sibling links that
// make list membership exclusive.
func (a *Arena) Copy(h Handle) (Handle, error) {
	c := a.cell(h)
	switch c.Kind {
	case KindString, KindFunctionParam:
		return a.newTextCell(c.Kind, a.StringValue(h))
	case KindArray:
		dup, err := a.NewArray()
		if err != nil {
			return None, err
		}
		for e := c.FirstChild; e != None; e = a.cell(e).NextSibling {
			elem, cerr := a.Copy(e)
			if cerr != nil {
				a.Unref(dup)
				return None, cerr
			}
			a.appendChild(dup, elem)
		}

		return dup, nil
	case KindObject, KindFunction:
		dup, err := a.alloc(c.Kind)
		if err != nil {
			return None, err
		}
		for p := c.FirstChild; p != None; p = a.cell(p).NextSibling {
			pc := a.cell(p)
			prop, cerr := a.newTextCell(pc.Kind, a.StringValue(p))
			if cerr != nil {
				a.Unref(dup)
				return None, cerr
			}
			a.cell(prop).FirstChild = a.Ref(pc.FirstChild)
			a.appendChild(dup, prop)
		}

		return dup, nil
	case KindArrayBuffer:
		return a.NewArrayBuffer(a.BufferBytes(h))
	default:
		dup, err := a.alloc(c.Kind)
		if err != nil {
			return None, err
		}
		d := a.cell(dup)
		d.Length = c.Length
		d.Data = c.Data

		return dup, nil
	}
}
