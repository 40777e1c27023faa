package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("length = %d, want 36 for %q", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("parts = %d, want 5 in %q", len(parts), id)
	}
}

func TestUUIDv7Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("msg_", UUIDv7())()
	if !strings.HasPrefix(id, "msg_") {
		t.Fatalf("id = %q, want msg_ prefix", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, "msg_")); err != nil {
		t.Fatalf("suffix not a UUID: %v", err)
	}
}

func TestDefaultIsValidUUID(t *testing.T) {
	id := New()
	if _, err := Parse(id); err != nil {
		t.Fatalf("New produced invalid UUID: %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
