package action

import (
	"io"
	"sync"
	"testing"

	modular "github.com/edwinhayes/logrus-modular"
	"github.com/sirupsen/logrus"

	"github.com/goalwire/goalwire/msgs"
)

//
// Shared fakes and helpers for the action package tests.
//

func newTestLogger() *modular.ModuleLogger {
	root := logrus.New()
	root.SetOutput(io.Discard)
	rootLogger := modular.NewRootLogger(root)
	logger := rootLogger.GetModuleLogger()
	return &logger
}

// recordingPublisher captures everything published on one topic.
type recordingPublisher struct {
	topic string

	mutex     sync.Mutex
	published []msgs.Message
}

func (p *recordingPublisher) Topic() string { return p.topic }

func (p *recordingPublisher) Publish(msg msgs.Message) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.published = append(p.published, msg)
}

func (p *recordingPublisher) Shutdown() {}

func (p *recordingPublisher) count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.published)
}

func (p *recordingPublisher) last() msgs.Message {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.published) == 0 {
		return nil
	}
	return p.published[len(p.published)-1]
}

func newTestRegistry() *msgs.Registry {
	reg := msgs.NewRegistry()
	reg.Register(msgs.NewDynamicMessageType("counter/Goal"))
	reg.Register(msgs.NewDynamicMessageType("counter/Feedback"))
	reg.Register(msgs.NewDynamicMessageType("counter/Result"))
	return reg
}

func newTestSpec(t *testing.T) *ActionSpec {
	t.Helper()

	spec, err := NewActionSpec(newTestRegistry(), "counter")
	if err != nil {
		t.Fatalf("NewActionSpec failed: %v", err)
	}
	return spec
}

// testHarness bundles a manager wired to recording publishers plus one
// submitted goal whose transitions are collected in order.
type testHarness struct {
	spec        *ActionSpec
	manager     *GoalManager
	goalPub     *recordingPublisher
	cancelPub   *recordingPublisher
	handle      *ClientGoalHandler
	mutex       sync.Mutex
	transitions []CommState
	feedbacks   []msgs.Message
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		spec:      newTestSpec(t),
		goalPub:   &recordingPublisher{topic: "counter/goal"},
		cancelPub: &recordingPublisher{topic: "counter/cancel"},
	}

	manager, err := NewGoalManager(h.spec, h.goalPub, h.cancelPub, "test_node", newTestLogger())
	if err != nil {
		t.Fatalf("NewGoalManager failed: %v", err)
	}
	h.manager = manager

	goal := h.spec.GoalType().(*msgs.DynamicMessageType).NewDynamicMessage()
	goal.Data()["target"] = float64(3)

	h.handle = manager.SendGoal(goal,
		func(gh *ClientGoalHandler, state CommState) {
			h.mutex.Lock()
			defer h.mutex.Unlock()
			h.transitions = append(h.transitions, state)
		},
		func(gh *ClientGoalHandler, fb msgs.Message) {
			h.mutex.Lock()
			defer h.mutex.Unlock()
			h.feedbacks = append(h.feedbacks, fb)
		})
	return h
}

func (h *testHarness) goalID() msgs.GoalID {
	return h.handle.GoalID()
}

func (h *testHarness) seenTransitions() []CommState {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	out := make([]CommState, len(h.transitions))
	copy(out, h.transitions)
	return out
}

func (h *testHarness) feedbackCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.feedbacks)
}

// deliverStatus feeds one status array holding the given statuses.
func (h *testHarness) deliverStatus(statuses ...msgs.GoalStatus) {
	h.manager.OnStatus(&msgs.GoalStatusArray{
		Header:     msgs.Header{Stamp: msgs.Now()},
		StatusList: statuses,
	})
}

// deliverResult feeds one result envelope for the given status.
func (h *testHarness) deliverResult(status msgs.GoalStatus, payload msgs.Message) {
	if payload == nil {
		payload = h.spec.ResultType().NewMessage()
	}
	h.manager.OnResult(h.spec.NewActionResult(payload, msgs.Now(), status))
}

// deliverFeedback feeds one feedback envelope for the given status.
func (h *testHarness) deliverFeedback(status msgs.GoalStatus, payload msgs.Message) {
	if payload == nil {
		payload = h.spec.FeedbackType().NewMessage()
	}
	h.manager.OnFeedback(h.spec.NewActionFeedback(payload, msgs.Now(), status))
}

func assertTransitions(t *testing.T, got, want []CommState) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("transition sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition sequence %v, want %v", got, want)
		}
	}
}
