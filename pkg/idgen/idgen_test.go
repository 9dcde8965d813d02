package idgen

import (
	"testing"
)

func TestSonyflakeGenerator(t *testing.T) {
	gen, err := NewSonyflakeGenerator(1)
	if err != nil {
		t.Fatalf("create generator failed: %v", err)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := gen.NextID()
		if err != nil {
			t.Fatalf("generate id failed: %v", err)
		}
		if id == "" {
			t.Fatal("id should not be empty")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()

	a, err := gen.NextID()
	if err != nil {
		t.Fatalf("generate id failed: %v", err)
	}
	b, err := gen.NextID()
	if err != nil {
		t.Fatalf("generate id failed: %v", err)
	}
	if a == b {
		t.Errorf("consecutive ids should differ: %s", a)
	}
	if len(a) != 36 {
		t.Errorf("expected uuid format, got %s", a)
	}
}

func TestDefaultGenerator(t *testing.T) {
	id, err := NextID()
	if err != nil {
		t.Fatalf("default generator failed: %v", err)
	}
	if id == "" {
		t.Fatal("id should not be empty")
	}
}
