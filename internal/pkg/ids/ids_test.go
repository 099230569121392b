package ids

import (
	"strings"
	"testing"
	"time"
)

func TestNewIDDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID("preview")
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNewIDAtSameInstant(t *testing.T) {
	at := time.Unix(1700000000, 42)

	a := NewIDAt("preview", at)
	b := NewIDAt("preview", at)

	if a == b {
		t.Fatalf("expected distinct ids for the same instant, got %s twice", a)
	}
	if !strings.HasPrefix(a, "preview_1700000000000000042_") {
		t.Errorf("unexpected id layout %s", a)
	}
	if parts := strings.Split(a, "_"); len(parts) != 3 || len(parts[2]) != 8 {
		t.Errorf("expected prefix_nanos_suffix, got %s", a)
	}
}
