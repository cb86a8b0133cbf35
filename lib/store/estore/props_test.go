package estore

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/value"
)

// fastOptions trades the per-append fsync for test speed. A clean Close
// still flushes everything, so recovery properties hold.
func fastOptions() *Options {
	opts := DefaultOptions()
	opts.WALSync = SyncBatched
	return opts
}

func TestStoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("set-get round trip", prop.ForAll(
		func(key string, val string) bool {
			s, err := Open(t.TempDir(), fastOptions())
			if err != nil {
				return false
			}
			defer s.Close()

			if err := s.Set(key, value.String(val)); err != nil {
				return false
			}
			got, loaded, err := s.Get(key)
			return err == nil && loaded && got.Equal(value.String(val))
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.Property("adds accumulate to the sum of deltas", prop.ForAll(
		func(key string, deltas []float64) bool {
			s, err := Open(t.TempDir(), fastOptions())
			if err != nil {
				return false
			}
			defer s.Close()

			sum := 0.0
			for _, d := range deltas {
				if _, err := s.Add(key, d); err != nil {
					return false
				}
				sum += d
			}
			if len(deltas) == 0 {
				loaded, err := s.Has(key)
				return err == nil && !loaded
			}
			got, loaded, err := s.Get(key)
			if err != nil || !loaded {
				return false
			}
			n, ok := got.AsNumber()
			return ok && math.Abs(n-sum) < 1e-6
		},
		gen.Identifier(),
		gen.SliceOf(gen.Float64Range(-1000, 1000)),
	))

	properties.Property("push count equals length", prop.ForAll(
		func(key string, elems []string) bool {
			s, err := Open(t.TempDir(), fastOptions())
			if err != nil {
				return false
			}
			defer s.Close()

			for _, e := range elems {
				if err := s.Push(key, value.String(e)); err != nil {
					return false
				}
			}
			if len(elems) == 0 {
				_, err := s.Length(key)
				return store.IsNotFound(err)
			}
			n, err := s.Length(key)
			return err == nil && n == len(elems)
		},
		gen.Identifier(),
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("pull removes exactly the equal elements", prop.ForAll(
		func(key string, elems []int, target int) bool {
			s, err := Open(t.TempDir(), fastOptions())
			if err != nil {
				return false
			}
			defer s.Close()

			var want []value.Value
			list := make([]value.Value, 0, len(elems))
			for _, e := range elems {
				list = append(list, value.Number(float64(e)))
				if e != target {
					want = append(want, value.Number(float64(e)))
				}
			}
			if err := s.Set(key, value.List(list...)); err != nil {
				return false
			}
			if err := s.Pull(key, value.Number(float64(target))); err != nil {
				return false
			}
			got, loaded, err := s.Get(key)
			return err == nil && loaded && got.Equal(value.List(want...))
		},
		gen.Identifier(),
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(0, 5),
	))

	properties.Property("delete makes the key absent", prop.ForAll(
		func(key string, val string) bool {
			s, err := Open(t.TempDir(), fastOptions())
			if err != nil {
				return false
			}
			defer s.Close()

			if err := s.Set(key, value.String(val)); err != nil {
				return false
			}
			if err := s.Delete(key); err != nil {
				return false
			}
			loaded, err := s.Has(key)
			return err == nil && !loaded
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// --------------------------------------------------------------------------
// Model-Based Recovery Property
// --------------------------------------------------------------------------

// storeOp is one step of a generated workload.
type storeOp struct {
	kind int // 0 set-string, 1 set-number, 2 delete, 3 push, 4 add, 5 pull
	key  string
	str  string
	num  float64
}

func genStoreOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.OneConstOf("alpha", "beta", "gamma", "delta"),
		gen.AlphaString(),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) storeOp {
		return storeOp{
			kind: vals[0].(int),
			key:  vals[1].(string),
			str:  vals[2].(string),
			num:  vals[3].(float64),
		}
	})
}

// applyToModel mirrors the store's semantics on a plain map. Operations
// the store rejects (type mismatches, deletes of missing keys) leave the
// model unchanged, matching the store's all-or-nothing error behavior.
func applyToModel(model map[string]value.Value, op storeOp) {
	cur, ok := model[op.key]
	switch op.kind {
	case 0:
		model[op.key] = value.String(op.str)
	case 1:
		model[op.key] = value.Number(op.num)
	case 2:
		if ok {
			delete(model, op.key)
		}
	case 3:
		if !ok {
			model[op.key] = value.List(value.String(op.str))
		} else if cur.Kind() == value.KindList {
			model[op.key] = cur.Append(value.String(op.str))
		}
	case 4:
		base := 0.0
		if ok {
			n, numeric := cur.AsNumber()
			if !numeric {
				return
			}
			base = n
		}
		model[op.key] = value.Number(base + op.num)
	case 5:
		if ok && cur.Kind() == value.KindList {
			pulled, _ := cur.Remove(value.String(op.str))
			model[op.key] = pulled
		}
	}
}

func applyToStore(s store.IStore, op storeOp) error {
	var err error
	switch op.kind {
	case 0:
		err = s.Set(op.key, value.String(op.str))
	case 1:
		err = s.Set(op.key, value.Number(op.num))
	case 2:
		err = s.Delete(op.key)
	case 3:
		err = s.Push(op.key, value.String(op.str))
	case 4:
		_, err = s.Add(op.key, op.num)
	case 5:
		err = s.Pull(op.key, value.String(op.str))
	}
	if err != nil {
		switch store.CodeOf(err) {
		case store.RetCNotFound, store.RetCTypeMismatch:
			return nil // rejected operations leave the state unchanged
		}
	}
	return err
}

func matchesModel(s store.IStore, model map[string]value.Value) bool {
	n, err := s.Size()
	if err != nil || n != len(model) {
		return false
	}
	for key, want := range model {
		got, loaded, err := s.Get(key)
		if err != nil || !loaded || !got.Equal(want) {
			return false
		}
	}
	return true
}

// TestRecoveryMatchesModel drives the store with arbitrary operation
// sequences and checks that the state visible after close and reopen is
// exactly the state a reference model predicts.
func TestRecoveryMatchesModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("reopened store equals reference model", prop.ForAll(
		func(ops []storeOp) bool {
			dir := t.TempDir()
			s, err := Open(dir, fastOptions())
			if err != nil {
				return false
			}

			model := make(map[string]value.Value)
			for _, op := range ops {
				if err := applyToStore(s, op); err != nil {
					_ = s.Close()
					return false
				}
				applyToModel(model, op)
			}
			if !matchesModel(s, model) {
				_ = s.Close()
				return false
			}
			if err := s.Close(); err != nil {
				return false
			}

			s2, err := Open(dir, fastOptions())
			if err != nil {
				return false
			}
			defer s2.Close()
			return matchesModel(s2, model)
		},
		gen.SliceOf(genStoreOp()),
	))

	properties.TestingRun(t)
}
