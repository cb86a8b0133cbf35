package value

import "testing"

func TestConstructorsAndKinds(t *testing.T) {
	cases := []struct {
		v    Value
		kind Kind
	}{
		{Absent(), KindAbsent},
		{String("x"), KindString},
		{Number(1.5), KindNumber},
		{Bool(false), KindBool},
		{List(Number(1)), KindList},
	}
	for _, c := range cases {
		if c.v.Kind() != c.kind {
			t.Errorf("expected kind %s, got %s", c.kind, c.v.Kind())
		}
	}

	var zero Value
	if !zero.IsAbsent() || !zero.Equal(Absent()) {
		t.Error("the zero Value must be absent")
	}
}

func TestEqual(t *testing.T) {
	equal := [][2]Value{
		{Absent(), Absent()},
		{String("a"), String("a")},
		{Number(0), Number(0)},
		{Bool(true), Bool(true)},
		{List(), List()},
		{List(Number(1), String("a")), List(Number(1), String("a"))},
		{List(List(Bool(true))), List(List(Bool(true)))},
	}
	for _, pair := range equal {
		if !pair[0].Equal(pair[1]) {
			t.Errorf("%v and %v should be equal", pair[0], pair[1])
		}
	}

	unequal := [][2]Value{
		{String("a"), String("b")},
		{Number(1), Number(2)},
		{Bool(true), Bool(false)},
		// A numeric string never equals a number; coercion is an
		// arithmetic concern, not an equality concern.
		{String("1"), Number(1)},
		{Absent(), String("")},
		{List(Number(1)), List(Number(1), Number(1))},
		{List(Number(1)), List(Number(2))},
		{List(), Absent()},
	}
	for _, pair := range unequal {
		if pair[0].Equal(pair[1]) {
			t.Errorf("%v and %v should not be equal", pair[0], pair[1])
		}
	}
}

func TestAsNumber(t *testing.T) {
	good := []struct {
		v    Value
		want float64
	}{
		{Number(3.5), 3.5},
		{Number(-0.25), -0.25},
		{String("42"), 42},
		{String("-1.5e2"), -150},
		{String("  7 "), 7},
	}
	for _, c := range good {
		got, ok := c.v.AsNumber()
		if !ok || got != c.want {
			t.Errorf("AsNumber(%v) = %v, %v; want %v, true", c.v, got, ok, c.want)
		}
	}

	bad := []Value{
		Absent(),
		String(""),
		String("abc"),
		String("1.2.3"),
		Bool(true),
		List(Number(1)),
	}
	for _, v := range bad {
		if _, ok := v.AsNumber(); ok {
			t.Errorf("AsNumber(%v) should fail", v)
		}
	}
}

func TestLength(t *testing.T) {
	good := []struct {
		v    Value
		want int
	}{
		{String(""), 0},
		{String("hello"), 5},
		// Character count, not byte count.
		{String("héllo"), 5},
		{String("日本語"), 3},
		{List(), 0},
		{List(Number(1), Number(2)), 2},
	}
	for _, c := range good {
		got, ok := c.v.Length()
		if !ok || got != c.want {
			t.Errorf("Length(%v) = %d, %v; want %d, true", c.v, got, ok, c.want)
		}
	}

	for _, v := range []Value{Absent(), Number(123), Bool(true)} {
		if _, ok := v.Length(); ok {
			t.Errorf("Length(%v) should be undefined", v)
		}
	}
}

func TestAppendAndRemove(t *testing.T) {
	list := List()
	list = list.Append(Number(1))
	list = list.Append(String("two"))
	list = list.Append(Number(1))
	if !list.Equal(List(Number(1), String("two"), Number(1))) {
		t.Fatalf("unexpected list after appends: %v", list)
	}

	pulled, removed := list.Remove(Number(1))
	if removed != 2 || !pulled.Equal(List(String("two"))) {
		t.Fatalf("Remove: got %v (removed %d)", pulled, removed)
	}

	// Removing a missing element is a no-op with count zero.
	same, removed := pulled.Remove(Bool(true))
	if removed != 0 || !same.Equal(pulled) {
		t.Fatalf("Remove of missing element: got %v (removed %d)", same, removed)
	}

	// Removing the last element leaves an empty list, not an absent value.
	empty, removed := List(Number(5)).Remove(Number(5))
	if removed != 1 || !empty.Equal(List()) || empty.IsAbsent() {
		t.Fatalf("Remove to empty: got %v (removed %d)", empty, removed)
	}
}

func TestImmutability(t *testing.T) {
	backing := []Value{Number(1), Number(2)}
	list := List(backing...)

	// Mutating the input slice after construction must not show through.
	backing[0] = String("mutated")
	if !list.Equal(List(Number(1), Number(2))) {
		t.Error("constructor aliased the input slice")
	}

	// Mutating the Elems copy must not show through either.
	elems := list.Elems()
	elems[1] = Bool(false)
	if !list.Equal(List(Number(1), Number(2))) {
		t.Error("Elems returned aliased storage")
	}

	// Append must not touch the original.
	grown := list.Append(Number(3))
	if list.Len() != 2 || grown.Len() != 3 {
		t.Errorf("Append mutated the receiver: len %d / %d", list.Len(), grown.Len())
	}

	clone := list.Clone()
	cloneElems := clone.Elems()
	cloneElems[0] = String("x")
	if !list.Equal(clone) {
		t.Error("Clone shares storage with the original")
	}
}

func TestStringRendering(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Absent(), "null"},
		{String("hi"), `"hi"`},
		{Number(1.5), "1.5"},
		{Bool(true), "true"},
		{List(), "[]"},
		{List(Number(1), String("a")), `[1,"a"]`},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String(%s) = %s, want %s", c.v.Kind(), got, c.want)
		}
	}
}
