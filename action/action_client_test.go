package action

import (
	"testing"

	"github.com/goalwire/goalwire/msgs"
	"github.com/goalwire/goalwire/transport"
)

// scenarioServer is the server half of the end-to-end scenarios: it
// records goal and cancel envelopes arriving over the bus and exposes
// publishers for the three return streams.
type scenarioServer struct {
	goals       []ActionGoal
	cancels     []msgs.GoalID
	statusPub   transport.Publisher
	feedbackPub transport.Publisher
	resultPub   transport.Publisher
}

func newScenarioServer(t *testing.T, bus *transport.Bus, spec *ActionSpec) *scenarioServer {
	t.Helper()

	node := bus.NewNode("scenario_server")
	srv := &scenarioServer{}

	var err error
	if srv.statusPub, err = node.NewPublisher("counter/status", msgs.GoalStatusArrayType{}); err != nil {
		t.Fatalf("status publisher: %v", err)
	}
	if srv.feedbackPub, err = node.NewPublisher("counter/feedback", spec.ActionFeedbackType()); err != nil {
		t.Fatalf("feedback publisher: %v", err)
	}
	if srv.resultPub, err = node.NewPublisher("counter/result", spec.ActionResultType()); err != nil {
		t.Fatalf("result publisher: %v", err)
	}
	if _, err = node.NewSubscriber("counter/goal", spec.ActionGoalType(), func(msg msgs.Message, _ transport.MessageEvent) {
		srv.goals = append(srv.goals, msg.(ActionGoal))
	}); err != nil {
		t.Fatalf("goal subscriber: %v", err)
	}
	if _, err = node.NewSubscriber("counter/cancel", msgs.GoalIDType{}, func(msg msgs.Message, _ transport.MessageEvent) {
		srv.cancels = append(srv.cancels, *msg.(*msgs.GoalID))
	}); err != nil {
		t.Fatalf("cancel subscriber: %v", err)
	}

	return srv
}

func (srv *scenarioServer) publishStatus(statuses ...msgs.GoalStatus) {
	srv.statusPub.Publish(&msgs.GoalStatusArray{
		Header:     msgs.Header{Stamp: msgs.Now()},
		StatusList: statuses,
	})
}

type scenario struct {
	spec        *ActionSpec
	server      *scenarioServer
	client      *Client
	handle      *ClientGoalHandler
	transitions []CommState
	feedbacks   []msgs.Message
}

// newScenario builds bus, server and client, and submits one goal
// whose transitions and feedback are collected. The bus is synchronous,
// so every publish below returns only after the client has fully
// processed the message.
func newScenario(t *testing.T) *scenario {
	t.Helper()

	logger := newTestLogger()
	bus := transport.NewBus(logger)

	s := &scenario{}
	s.spec = newTestSpec(t)
	s.server = newScenarioServer(t, bus, s.spec)

	client, err := NewClient(bus.NewNode("scenario_client"), "counter", s.spec, logger)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	s.client = client

	goal := s.spec.GoalType().(*msgs.DynamicMessageType).NewDynamicMessage()
	goal.Data()["target"] = float64(5)
	s.handle = client.SendGoal(goal,
		func(gh *ClientGoalHandler, state CommState) {
			s.transitions = append(s.transitions, state)
		},
		func(gh *ClientGoalHandler, fb msgs.Message) {
			s.feedbacks = append(s.feedbacks, fb)
		})
	return s
}

func (s *scenario) goalID() msgs.GoalID {
	// The id as the server sees it, decoded off the wire.
	return s.server.goals[0].GetGoalID()
}

func TestScenarioHappyPath(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	if len(s.server.goals) != 1 {
		t.Fatalf("server received %d goals, want 1", len(s.server.goals))
	}
	id := s.goalID()

	s.server.publishStatus(msgs.GoalStatus{GoalID: id, Status: msgs.Pending})
	s.server.publishStatus(msgs.GoalStatus{GoalID: id, Status: msgs.Active})
	s.server.publishStatus(msgs.GoalStatus{GoalID: id, Status: msgs.Succeeded})

	payload := s.spec.ResultType().(*msgs.DynamicMessageType).NewDynamicMessage()
	payload.Data()["sum"] = float64(15)
	s.server.resultPub.Publish(s.spec.NewActionResult(payload, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Succeeded}))

	assertTransitions(t, s.transitions, []CommState{Pending, Active, WaitingForResult, Done})
	if got := s.handle.GetTerminalState(); got != msgs.Succeeded {
		t.Fatalf("terminal state = %s, want SUCCEEDED", msgs.StatusString(got))
	}
	result := s.handle.GetResult().(*msgs.DynamicMessage)
	if result.Data()["sum"] != float64(15) {
		t.Fatalf("result payload = %v, want sum 15", result.Data())
	}
}

func TestScenarioEarlyCancel(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	if err := s.handle.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := s.handle.GetCommState(); got != WaitingForCancelAck {
		t.Fatalf("state = %v, want WAITING_FOR_CANCEL_ACK", got)
	}
	if len(s.server.cancels) != 1 {
		t.Fatalf("server received %d cancels, want 1", len(s.server.cancels))
	}
	if s.server.cancels[0].ID != s.goalID().ID {
		t.Fatalf("cancel id = %q, want %q", s.server.cancels[0].ID, s.goalID().ID)
	}
	if !s.server.cancels[0].Stamp.IsZero() {
		t.Fatal("cancel stamp should be zero")
	}

	s.server.publishStatus(msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Recalling})
	if got := s.handle.GetCommState(); got != Recalling {
		t.Fatalf("state = %v, want RECALLING", got)
	}

	s.server.resultPub.Publish(s.spec.NewActionResult(nil, msgs.Now(), msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Recalled}))

	if got := s.handle.GetCommState(); got != Done {
		t.Fatalf("state = %v, want DONE", got)
	}
	if got := s.handle.GetTerminalState(); got != msgs.Recalled {
		t.Fatalf("terminal state = %s, want RECALLED", msgs.StatusString(got))
	}
	assertTransitions(t, s.transitions, []CommState{WaitingForCancelAck, Recalling, WaitingForResult, Done})
}

func TestScenarioMissingStatusSynthesizesLost(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	s.server.publishStatus(msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Active})
	s.server.publishStatus()

	if got := s.handle.GetCommState(); got != Done {
		t.Fatalf("state = %v, want DONE", got)
	}
	if got := s.handle.GetTerminalState(); got != msgs.Lost {
		t.Fatalf("terminal state = %s, want LOST", msgs.StatusString(got))
	}
}

func TestScenarioUnrelatedStatusIgnored(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	s.server.publishStatus(msgs.GoalStatus{GoalID: msgs.GoalID{ID: "G99"}, Status: msgs.Succeeded})

	if got := s.handle.GetCommState(); got != WaitingForGoalAck {
		t.Fatalf("state = %v, want WAITING_FOR_GOAL_ACK", got)
	}
	if len(s.transitions) != 0 {
		t.Fatalf("callbacks fired %d times for an unrelated goal", len(s.transitions))
	}
}

func TestScenarioDuplicateTerminal(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	id := s.goalID()
	s.server.publishStatus(msgs.GoalStatus{GoalID: id, Status: msgs.Succeeded})

	payload := s.spec.ResultType().(*msgs.DynamicMessageType).NewDynamicMessage()
	payload.Data()["sum"] = float64(15)
	s.server.resultPub.Publish(s.spec.NewActionResult(payload, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Succeeded}))

	done := len(s.transitions)
	s.server.resultPub.Publish(s.spec.NewActionResult(nil, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Aborted}))

	if got := s.handle.GetCommState(); got != Done {
		t.Fatalf("state = %v, want DONE", got)
	}
	if len(s.transitions) != done {
		t.Fatal("duplicate terminal fired additional transitions")
	}
	if got := s.handle.GetTerminalState(); got != msgs.Succeeded {
		t.Fatalf("terminal state = %s, want SUCCEEDED from first result", msgs.StatusString(got))
	}
	result := s.handle.GetResult().(*msgs.DynamicMessage)
	if result.Data()["sum"] != float64(15) {
		t.Fatal("duplicate terminal overwrote the result")
	}
}

func TestScenarioServerSkipsActive(t *testing.T) {
	s := newScenario(t)
	defer s.client.Shutdown()

	s.server.publishStatus(msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Preempted})

	assertTransitions(t, s.transitions, []CommState{Active, Preempting, WaitingForResult})

	s.server.resultPub.Publish(s.spec.NewActionResult(nil, msgs.Now(), msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Preempted}))

	if got := s.handle.GetCommState(); got != Done {
		t.Fatalf("state = %v, want DONE", got)
	}
	if got := s.handle.GetTerminalState(); got != msgs.Preempted {
		t.Fatalf("terminal state = %s, want PREEMPTED", msgs.StatusString(got))
	}
}

func TestClientShutdownDeactivatesHandles(t *testing.T) {
	s := newScenario(t)

	s.client.Shutdown()

	if s.handle.IsActive() {
		t.Fatal("handle active after client shutdown")
	}

	// Late messages on the fabric no longer reach the client.
	s.server.publishStatus(msgs.GoalStatus{GoalID: s.goalID(), Status: msgs.Active})
	if len(s.transitions) != 0 {
		t.Fatal("callback fired after client shutdown")
	}
}
