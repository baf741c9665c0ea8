package action

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/goalwire/goalwire/msgs"
)

// goalIDGenerator mints process-unique goal identifiers of the form
// <node>-<counter>-<stamp>.
type goalIDGenerator struct {
	name    string
	counter uint64
}

func newGoalIDGenerator(name string) *goalIDGenerator {
	if name == "" {
		name = "goalwire-" + uuid.NewString()
	}
	return &goalIDGenerator{name: name}
}

func (g *goalIDGenerator) generateID() msgs.GoalID {
	now := msgs.Now()
	n := atomic.AddUint64(&g.counter, 1)
	return msgs.GoalID{
		ID:    fmt.Sprintf("%s-%d-%d.%d", g.name, n, now.Sec, now.NSec),
		Stamp: now,
	}
}
