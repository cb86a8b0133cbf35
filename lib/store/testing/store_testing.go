package testing

import (
	"fmt"
	"testing"

	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/value"
)

// StoreFactory is a function that creates a fresh store instance for one
// test. Implementations typically open a store in a test temp directory
// and register cleanup via tb.Cleanup.
type StoreFactory func(tb testing.TB) store.IStore

// RunStoreTests runs a comprehensive conformance suite for an IStore
// implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Push", func(t *testing.T) {
			testPush(t, factory(t))
		})

		t.Run("Pull", func(t *testing.T) {
			testPull(t, factory(t))
		})

		t.Run("Add&Subtract", func(t *testing.T) {
			testAddSubtract(t, factory(t))
		})

		t.Run("Length", func(t *testing.T) {
			testLength(t, factory(t))
		})

		t.Run("Size", func(t *testing.T) {
			testSize(t, factory(t))
		})

		t.Run("InvalidKeys", func(t *testing.T) {
			testInvalidKeys(t, factory(t))
		})

		t.Run("ValueIsolation", func(t *testing.T) {
			testValueIsolation(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustSet(t testing.TB, s store.IStore, key string, v value.Value) {
	t.Helper()
	if err := s.Set(key, v); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, s store.IStore, key string) value.Value {
	t.Helper()
	v, loaded, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !loaded {
		t.Fatalf("Get(%q) expected key to exist", key)
	}
	return v
}

func wantCode(t testing.TB, err error, code store.RetCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := store.CodeOf(err); got != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, got, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()

	mustSet(t, s, "greeting", value.String("hello"))
	if got := mustGet(t, s, "greeting"); !got.Equal(value.String("hello")) {
		t.Errorf("expected %v, got %v", value.String("hello"), got)
	}

	// Replacing a value of a different kind is allowed.
	mustSet(t, s, "greeting", value.Number(42))
	if got := mustGet(t, s, "greeting"); !got.Equal(value.Number(42)) {
		t.Errorf("expected 42, got %v", got)
	}

	mustSet(t, s, "flag", value.Bool(true))
	if got := mustGet(t, s, "flag"); !got.Equal(value.Bool(true)) {
		t.Errorf("expected true, got %v", got)
	}

	mustSet(t, s, "items", value.List(value.Number(1), value.String("two")))
	if got := mustGet(t, s, "items"); !got.Equal(value.List(value.Number(1), value.String("two"))) {
		t.Errorf("unexpected list value: %v", got)
	}

	v, loaded, err := s.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get on missing key should not fail: %v", err)
	}
	if loaded || !v.IsAbsent() {
		t.Errorf("expected missing key to return absent, got loaded=%v v=%v", loaded, v)
	}
}

func testHas(t *testing.T, s store.IStore) {
	defer s.Close()

	if loaded, err := s.Has("missing"); err != nil || loaded {
		t.Errorf("Has on missing key: loaded=%v err=%v", loaded, err)
	}

	mustSet(t, s, "present", value.String("x"))
	if loaded, err := s.Has("present"); err != nil || !loaded {
		t.Errorf("Has on present key: loaded=%v err=%v", loaded, err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()

	wantCode(t, s.Delete("missing"), store.RetCNotFound)

	mustSet(t, s, "doomed", value.Number(1))
	if err := s.Delete("doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if loaded, _ := s.Has("doomed"); loaded {
		t.Errorf("key should not exist after delete")
	}
	if v, loaded, _ := s.Get("doomed"); loaded || !v.IsAbsent() {
		t.Errorf("Get after delete should return absent")
	}

	// A deleted key can be recreated.
	mustSet(t, s, "doomed", value.String("back"))
	if got := mustGet(t, s, "doomed"); !got.Equal(value.String("back")) {
		t.Errorf("expected recreated value, got %v", got)
	}
}

func testPush(t *testing.T, s store.IStore) {
	defer s.Close()

	// Pushing to a missing key creates a singleton list.
	if err := s.Push("queue", value.String("a")); err != nil {
		t.Fatalf("Push on missing key failed: %v", err)
	}
	if got := mustGet(t, s, "queue"); !got.Equal(value.List(value.String("a"))) {
		t.Errorf("expected [a], got %v", got)
	}

	// Further pushes append in order.
	if err := s.Push("queue", value.Number(2)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if got := mustGet(t, s, "queue"); !got.Equal(value.List(value.String("a"), value.Number(2))) {
		t.Errorf("expected [a, 2], got %v", got)
	}

	mustSet(t, s, "scalar", value.Number(7))
	wantCode(t, s.Push("scalar", value.String("x")), store.RetCTypeMismatch)
}

func testPull(t *testing.T, s store.IStore) {
	defer s.Close()

	wantCode(t, s.Pull("missing", value.Number(1)), store.RetCNotFound)

	mustSet(t, s, "scalar", value.String("nope"))
	wantCode(t, s.Pull("scalar", value.String("nope")), store.RetCTypeMismatch)

	// Pull removes all matching elements, not just the first.
	mustSet(t, s, "list", value.List(
		value.Number(1), value.Number(2), value.Number(1), value.String("1"), value.Number(1),
	))
	if err := s.Pull("list", value.Number(1)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if got := mustGet(t, s, "list"); !got.Equal(value.List(value.Number(2), value.String("1"))) {
		t.Errorf("expected [2, \"1\"], got %v", got)
	}

	// Pulling an element that is not present leaves the list unchanged
	// and does not fail.
	if err := s.Pull("list", value.Bool(true)); err != nil {
		t.Fatalf("Pull of missing element should not fail: %v", err)
	}
	if got := mustGet(t, s, "list"); !got.Equal(value.List(value.Number(2), value.String("1"))) {
		t.Errorf("list should be unchanged, got %v", got)
	}

	// Nested lists match by deep equality.
	mustSet(t, s, "nested", value.List(
		value.List(value.Number(1), value.Number(2)),
		value.List(value.Number(3)),
		value.List(value.Number(1), value.Number(2)),
	))
	if err := s.Pull("nested", value.List(value.Number(1), value.Number(2))); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if got := mustGet(t, s, "nested"); !got.Equal(value.List(value.List(value.Number(3)))) {
		t.Errorf("expected [[3]], got %v", got)
	}
}

func testAddSubtract(t *testing.T, s store.IStore) {
	defer s.Close()

	// Absent keys are treated as implicit zero.
	got, err := s.Add("n", 5)
	if err != nil {
		t.Fatalf("Add on missing key failed: %v", err)
	}
	if !got.Equal(value.Number(5)) {
		t.Errorf("expected 5, got %v", got)
	}

	got, err = s.Add("n", 5)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !got.Equal(value.Number(10)) {
		t.Errorf("expected 10, got %v", got)
	}

	got, err = s.Subtract("n", 3)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}
	if !got.Equal(value.Number(7)) {
		t.Errorf("expected 7, got %v", got)
	}

	got, err = s.Subtract("fresh", 4)
	if err != nil {
		t.Fatalf("Subtract on missing key failed: %v", err)
	}
	if !got.Equal(value.Number(-4)) {
		t.Errorf("expected -4, got %v", got)
	}

	// Numeric-looking strings coerce; the result is stored as a number.
	mustSet(t, s, "strnum", value.String("12.5"))
	got, err = s.Add("strnum", 2.5)
	if err != nil {
		t.Fatalf("Add on numeric string failed: %v", err)
	}
	if !got.Equal(value.Number(15)) {
		t.Errorf("expected 15, got %v", got)
	}
	if stored := mustGet(t, s, "strnum"); stored.Kind() != value.KindNumber {
		t.Errorf("expected stored kind number, got %s", stored.Kind())
	}

	mustSet(t, s, "text", value.String("not a number"))
	_, err = s.Add("text", 1)
	wantCode(t, err, store.RetCTypeMismatch)

	mustSet(t, s, "flag", value.Bool(true))
	_, err = s.Subtract("flag", 1)
	wantCode(t, err, store.RetCTypeMismatch)
}

func testLength(t *testing.T, s store.IStore) {
	defer s.Close()

	_, err := s.Length("missing")
	wantCode(t, err, store.RetCNotFound)

	mustSet(t, s, "word", value.String("héllo"))
	if n, err := s.Length("word"); err != nil || n != 5 {
		t.Errorf("Length of \"héllo\": n=%d err=%v (want 5, character count not byte count)", n, err)
	}

	mustSet(t, s, "list", value.List(value.Number(1), value.Number(2), value.Number(3)))
	if n, err := s.Length("list"); err != nil || n != 3 {
		t.Errorf("Length of 3-element list: n=%d err=%v", n, err)
	}

	mustSet(t, s, "num", value.Number(12345))
	_, err = s.Length("num")
	wantCode(t, err, store.RetCTypeMismatch)

	mustSet(t, s, "flag", value.Bool(false))
	_, err = s.Length("flag")
	wantCode(t, err, store.RetCTypeMismatch)
}

func testSize(t *testing.T, s store.IStore) {
	defer s.Close()

	if n, err := s.Size(); err != nil || n != 0 {
		t.Errorf("empty store: size=%d err=%v", n, err)
	}

	for i := 0; i < 10; i++ {
		mustSet(t, s, fmt.Sprintf("key-%d", i), value.Number(float64(i)))
	}
	if n, err := s.Size(); err != nil || n != 10 {
		t.Errorf("after 10 sets: size=%d err=%v", n, err)
	}

	// Replacing does not grow the store, deleting shrinks it.
	mustSet(t, s, "key-0", value.String("replaced"))
	if err := s.Delete("key-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, err := s.Size(); err != nil || n != 9 {
		t.Errorf("after replace+delete: size=%d err=%v", n, err)
	}
}

func testInvalidKeys(t *testing.T, s store.IStore) {
	defer s.Close()

	wantCode(t, s.Set("", value.Number(1)), store.RetCInvalidKey)
	wantCode(t, s.Push("", value.Number(1)), store.RetCInvalidKey)
	_, err := s.Add("", 1)
	wantCode(t, err, store.RetCInvalidKey)

	// Reads on an empty key never fail, they simply find nothing.
	if _, loaded, err := s.Get(""); err != nil || loaded {
		t.Errorf("Get(\"\"): loaded=%v err=%v", loaded, err)
	}
	if loaded, err := s.Has(""); err != nil || loaded {
		t.Errorf("Has(\"\"): loaded=%v err=%v", loaded, err)
	}
}

func testValueIsolation(t *testing.T, s store.IStore) {
	defer s.Close()

	mustSet(t, s, "list", value.List(value.Number(1)))

	// Mutating the elements slice of a returned value must not leak into
	// the store.
	got := mustGet(t, s, "list")
	elems := got.Elems()
	elems[0] = value.String("mutated")

	if again := mustGet(t, s, "list"); !again.Equal(value.List(value.Number(1))) {
		t.Errorf("store value changed through a returned copy: %v", again)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	defer s.Close()

	// Unicode keys and values round-trip.
	mustSet(t, s, "schlüssel-日本語", value.String("wert-値"))
	if got := mustGet(t, s, "schlüssel-日本語"); !got.Equal(value.String("wert-値")) {
		t.Errorf("unicode round trip failed: %v", got)
	}

	// Empty strings and empty lists are valid values.
	mustSet(t, s, "empty-str", value.String(""))
	if n, err := s.Length("empty-str"); err != nil || n != 0 {
		t.Errorf("Length of empty string: n=%d err=%v", n, err)
	}
	mustSet(t, s, "empty-list", value.List())
	if n, err := s.Length("empty-list"); err != nil || n != 0 {
		t.Errorf("Length of empty list: n=%d err=%v", n, err)
	}

	// Pulling the last element leaves an empty list, not a deleted key.
	mustSet(t, s, "single", value.List(value.Number(1)))
	if err := s.Pull("single", value.Number(1)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if got := mustGet(t, s, "single"); !got.Equal(value.List()) {
		t.Errorf("expected empty list, got %v", got)
	}

	// Large list built through repeated pushes.
	for i := 0; i < 1000; i++ {
		if err := s.Push("big", value.Number(float64(i%10))); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}
	if n, err := s.Length("big"); err != nil || n != 1000 {
		t.Fatalf("Length of big list: n=%d err=%v", n, err)
	}
	if err := s.Pull("big", value.Number(0)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if n, _ := s.Length("big"); n != 900 {
		t.Errorf("expected 900 elements after pulling all zeros, got %d", n)
	}
}
