package llm

import (
	"errors"
	"testing"

	"mnemo/internal/errs"
)

func TestKeyRingEmptyPoolFailsFast(t *testing.T) {
	_, err := NewKeyRing(nil)
	if !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	_, err = NewKeyRing([]string{"", ""})
	if !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing for all-blank pool, got %v", err)
	}
}

func TestKeyRingFullCycle(t *testing.T) {
	pool := []string{"key-1", "key-2", "key-3"}
	ring, err := NewKeyRing(pool)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}

	seen := make(map[string]int)
	var order []string
	for i := 0; i < len(pool); i++ {
		k := ring.Next()
		seen[k]++
		order = append(order, k)
	}

	for _, k := range pool {
		if seen[k] != 1 {
			t.Errorf("key %q returned %d times in one cycle, want exactly once", k, seen[k])
		}
	}
	for i, k := range order {
		if k != pool[i] {
			t.Errorf("rotation order broken: position %d = %q, want %q", i, k, pool[i])
		}
	}

	// After a full cycle the ring is back at its original front.
	if next := ring.Next(); next != pool[0] {
		t.Errorf("after full cycle Next() = %q, want %q", next, pool[0])
	}
}

func TestKeyRingSingleKey(t *testing.T) {
	ring, err := NewKeyRing([]string{"only"})
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	for i := 0; i < 3; i++ {
		if k := ring.Next(); k != "only" {
			t.Fatalf("Next() = %q", k)
		}
	}
}
