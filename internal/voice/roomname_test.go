package voice

import (
	"strings"
	"testing"
)

func TestRoomName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := RoomName()
		parts := strings.Split(name, "-")
		if len(parts) != 3 {
			t.Fatalf("room name %q has %d words", name, len(parts))
		}
		for _, p := range parts {
			if p == "" {
				t.Fatalf("empty word in %q", name)
			}
		}
		seen[name] = true
	}
	if len(seen) < 40 {
		t.Fatalf("only %d distinct names in 50 draws", len(seen))
	}
}

func TestPickDistinctAscending(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := pick(5, 3)
		if len(got) != 3 {
			t.Fatalf("pick returned %v", got)
		}
		for j := 1; j < len(got); j++ {
			if got[j] <= got[j-1] {
				t.Fatalf("pick returned %v, want strictly ascending", got)
			}
		}
		if got[2] >= 5 {
			t.Fatalf("pick returned %v, out of range", got)
		}
	}
}
