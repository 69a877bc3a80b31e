package queue

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestIdentifiersSortInGenerationOrder(t *testing.T) {
	gen := newIDGenerator()

	prev := gen.next()
	for i := 0; i < 5000; i++ {
		next := gen.next()
		if strings.Compare(prev, next) >= 0 {
			t.Fatalf("identifier %q does not sort after %q (iteration %d)", next, prev, i)
		}
		prev = next
	}
}

func TestIdentifiersAreUniqueAndCanonical(t *testing.T) {
	gen := newIDGenerator()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.next()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier %q", id)
		}
		seen[id] = struct{}{}

		if len(id) != 36 {
			t.Fatalf("expected fixed-width identifier, got %q (len %d)", id, len(id))
		}
		if id != strings.ToLower(id) {
			t.Fatalf("expected case-normalized identifier, got %q", id)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("identifier %q is not canonical: %v", id, err)
		}
		if parsed.Version() != idVersion {
			t.Fatalf("expected version tag %d, got %d in %q", idVersion, parsed.Version(), id)
		}
	}
}

func TestNormalizeID(t *testing.T) {
	gen := newIDGenerator()
	id := gen.next()

	normalized, err := NormalizeID(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("NormalizeID: %v", err)
	}
	if normalized != id {
		t.Fatalf("expected %q, got %q", id, normalized)
	}

	if _, err := NormalizeID("not-an-identifier"); err == nil {
		t.Fatal("expected error for malformed identifier")
	}
}
