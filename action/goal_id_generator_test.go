package action

import (
	"strings"
	"testing"
)

func TestGenerateIDUniqueWithinProcess(t *testing.T) {
	gen := newGoalIDGenerator("node_a")

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.generateID()
		if seen[id.ID] {
			t.Fatalf("duplicate goal id %q", id.ID)
		}
		seen[id.ID] = true

		if !strings.HasPrefix(id.ID, "node_a-") {
			t.Fatalf("goal id %q not prefixed with node name", id.ID)
		}
		if id.Stamp.IsZero() {
			t.Fatal("generated id has a zero stamp")
		}
	}
}

func TestGeneratorFallsBackToRandomNodeName(t *testing.T) {
	gen := newGoalIDGenerator("")

	id := gen.generateID()
	if !strings.HasPrefix(id.ID, "goalwire-") {
		t.Fatalf("goal id %q has no fallback node name", id.ID)
	}
}
