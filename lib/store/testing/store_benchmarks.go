package testing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/value"
)

// RunStoreBenchmarks runs all benchmarks for an IStore implementation.
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory(b))
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory(b))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(b))
	})

	b.Run("Has", func(b *testing.B) {
		benchmarkHas(b, factory(b))
	})

	b.Run("Add", func(b *testing.B) {
		benchmarkAdd(b, factory(b))
	})

	b.Run("Push", func(b *testing.B) {
		benchmarkPush(b, factory(b))
	})

	b.Run("LargeString", func(b *testing.B) {
		benchmarkLargeString(b, factory(b))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench-key-%d", i)
		if err := s.Set(key, value.String(fmt.Sprintf("bench-value-%d", i))); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkSetExisting(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	const numKeys = 1024
	for i := 0; i < numKeys; i++ {
		if err := s.Set(fmt.Sprintf("bench-key-%d", i), value.Number(float64(i))); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench-key-%d", i%numKeys)
		if err := s.Set(key, value.Number(float64(i))); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	const numKeys = 1024
	for i := 0; i < numKeys; i++ {
		if err := s.Set(fmt.Sprintf("bench-key-%d", i), value.String("payload")); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if _, _, err := s.Get(fmt.Sprintf("bench-key-%d", counter%numKeys)); err != nil {
				b.Fatal(err)
			}
			counter++
		}
	})
}

func benchmarkHas(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.Set("bench-key", value.Bool(true)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.Has("bench-key"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func benchmarkAdd(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Add("counter", 1); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkPush(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Spread over keys so list length stays bounded; pushing to one
		// key would measure list copying, not the write path.
		key := fmt.Sprintf("bench-list-%d", i%4096)
		if err := s.Push(key, value.Number(float64(i))); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkLargeString(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	payload := value.String(strings.Repeat("x", 100*1024))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Set(fmt.Sprintf("bench-large-%d", i%64), payload); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, s store.IStore) {
	b.Cleanup(func() {
		_ = s.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench-key-%d", i%512)
		switch i % 5 {
		case 0:
			if err := s.Set(key, value.Number(float64(i))); err != nil {
				b.Fatal(err)
			}
		case 1, 2:
			if _, _, err := s.Get(key); err != nil {
				b.Fatal(err)
			}
		case 3:
			if _, err := s.Add(key, 1); err != nil && !store.IsTypeMismatch(err) {
				b.Fatal(err)
			}
		case 4:
			if _, err := s.Has(key); err != nil {
				b.Fatal(err)
			}
		}
	}
}
