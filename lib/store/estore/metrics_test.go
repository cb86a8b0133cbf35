package estore

import (
	"testing"

	"github.com/lbrandt/cedar/lib/value"
)

func TestGetCounterIncludesMisses(t *testing.T) {
	s := openImpl(t, t.TempDir(), nil)
	defer s.Close()

	before := metricGetOps.Get()

	if _, found, err := s.Get("missing"); err != nil || found {
		t.Fatalf("get missing key: found=%v err=%v", found, err)
	}
	if err := s.Set("present", value.String("x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, found, err := s.Get("present"); err != nil || !found {
		t.Fatalf("get present key: found=%v err=%v", found, err)
	}

	if got := metricGetOps.Get() - before; got != 2 {
		t.Fatalf("counted %d get operations, want 2", got)
	}
}
