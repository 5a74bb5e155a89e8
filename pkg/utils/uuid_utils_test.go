package utils

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateUUIDv7(t *testing.T) {
	id := GenerateUUIDv7()
	if id.String() == "" {
		t.Fatal("expected non-empty uuid")
	}
}

func TestGenerateUUIDv7_FallbackBranch(t *testing.T) {
	orig := newUUIDv7
	t.Cleanup(func() { newUUIDv7 = orig })

	newUUIDv7 = func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("v7 failed")
	}
	id := GenerateUUIDv7()
	if id == uuid.Nil {
		t.Fatal("expected v4 fallback id when v7 fails")
	}
}

func TestDedupeUUIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := DedupeUUIDs([]uuid.UUID{a, b, a, a, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("unexpected dedupe result %v", got)
	}
	if len(DedupeUUIDs(nil)) != 0 {
		t.Fatal("expected empty result for nil input")
	}
}
