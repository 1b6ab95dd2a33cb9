package stringify

import (
	"testing"

	"github.com/minivm/cello/arena"
	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.New(128)
	require.NoError(t, err)

	return a
}

func TestStringify_Scalars(t *testing.T) {
	a := newTestArena(t)

	u, err := a.NewUndefined()
	require.NoError(t, err)
	require.Equal(t, "undefined", Stringify(a, u))

	n, err := a.NewNull()
	require.NoError(t, err)
	require.Equal(t, "null", Stringify(a, n))

	i, err := a.NewInt(42)
	require.NoError(t, err)
	require.Equal(t, "42", Stringify(a, i))

	f, err := a.NewFloat(2.5)
	require.NoError(t, err)
	require.Equal(t, "2.5", Stringify(a, f))

	// Strings are appended verbatim: no quotes, no escaping.
	s, err := a.NewString("plain text")
	require.NoError(t, err)
	require.Equal(t, "plain text", Stringify(a, s))

	require.Equal(t, "undefined", Stringify(a, arena.None))
}

func TestStringify_Arrays(t *testing.T) {
	a := newTestArena(t)

	empty, err := a.NewArray()
	require.NoError(t, err)
	require.Equal(t, "[]", Stringify(a, empty))

	arr, err := a.NewArray()
	require.NoError(t, err)
	for i := int64(1); i <= 3; i++ {
		e, eerr := a.NewInt(i)
		require.NoError(t, eerr)
		require.NoError(t, a.ArrayPush(arr, e))
	}
	require.Equal(t, "[1,2,3]", Stringify(a, arr))
}

func TestStringify_Objects(t *testing.T) {
	a := newTestArena(t)

	empty, err := a.NewObject()
	require.NoError(t, err)
	require.Equal(t, "{}", Stringify(a, empty))

	obj, err := a.NewObject()
	require.NoError(t, err)
	v, err := a.NewInt(5)
	require.NoError(t, err)
	require.NoError(t, a.ObjectSet(obj, "x", v))
	require.Equal(t, `{"x":5}`, Stringify(a, obj))

	// Properties emit in child-list order.
	w, err := a.NewString("hi")
	require.NoError(t, err)
	require.NoError(t, a.ObjectSet(obj, "y", w))
	require.Equal(t, `{"x":5,"y":hi}`, Stringify(a, obj))
}

func TestStringify_PropertyNamesUnescaped(t *testing.T) {
	a := newTestArena(t)

	obj, err := a.NewObject()
	require.NoError(t, err)
	v, err := a.NewInt(1)
	require.NoError(t, err)
	// The known gap: names go out verbatim even when they contain quotes.
	require.NoError(t, a.ObjectSet(obj, `we"ird`, v))
	require.Equal(t, `{"we"ird":1}`, Stringify(a, obj))
}

func TestStringify_Functions(t *testing.T) {
	a := newTestArena(t)

	fn, err := a.NewFunction([]string{"a", "b"}, "")
	require.NoError(t, err)
	require.Equal(t, "function (a,b) {}", Stringify(a, fn))

	withBody, err := a.NewFunction([]string{"x"}, "{ return x; }")
	require.NoError(t, err)
	require.Equal(t, "function (x) { return x; }", Stringify(a, withBody))

	nullary, err := a.NewFunction(nil, "")
	require.NoError(t, err)
	require.Equal(t, "function () {}", Stringify(a, nullary))
}

func TestStringify_Nested(t *testing.T) {
	a := newTestArena(t)

	inner, err := a.NewArray()
	require.NoError(t, err)
	e, err := a.NewInt(7)
	require.NoError(t, err)
	require.NoError(t, a.ArrayPush(inner, e))

	obj, err := a.NewObject()
	require.NoError(t, err)
	require.NoError(t, a.ObjectSet(obj, "list", inner))

	outer, err := a.NewArray()
	require.NoError(t, err)
	require.NoError(t, a.ArrayPush(outer, obj))

	u, err := a.NewUndefined()
	require.NoError(t, err)
	require.NoError(t, a.ArrayPush(outer, u))

	require.Equal(t, `[{"list":[7]},undefined]`, Stringify(a, outer))
}

func TestStringify_LongPropertyName(t *testing.T) {
	a := newTestArena(t)

	obj, err := a.NewObject()
	require.NoError(t, err)
	v, err := a.NewInt(9)
	require.NoError(t, err)
	// Name spans several continuation cells.
	require.NoError(t, a.ObjectSet(obj, "a_property_name_longer_than_one_cell", v))
	require.Equal(t, `{"a_property_name_longer_than_one_cell":9}`, Stringify(a, obj))
}
