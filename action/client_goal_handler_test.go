package action

import (
	"testing"

	"github.com/goalwire/goalwire/msgs"
)

func TestCancelPublishesAndAdvancesState(t *testing.T) {
	h := newTestHarness(t)

	if err := h.handle.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if got := h.handle.GetCommState(); got != WaitingForCancelAck {
		t.Fatalf("state = %v, want WAITING_FOR_CANCEL_ACK", got)
	}
	if h.cancelPub.count() != 1 {
		t.Fatalf("cancel messages published = %d, want 1", h.cancelPub.count())
	}

	cancel := h.cancelPub.last().(*msgs.GoalID)
	if cancel.ID != h.goalID().ID {
		t.Fatalf("cancel id = %q, want %q", cancel.ID, h.goalID().ID)
	}
	if !cancel.Stamp.IsZero() {
		t.Fatalf("cancel stamp = %v, want zero", cancel.Stamp)
	}

	assertTransitions(t, h.seenTransitions(), []CommState{WaitingForCancelAck})
}

func TestResendRepublishesOriginalEnvelope(t *testing.T) {
	h := newTestHarness(t)

	original := h.goalPub.last().(ActionGoal)
	if err := h.handle.Resend(); err != nil {
		t.Fatalf("Resend failed: %v", err)
	}

	if h.goalPub.count() != 2 {
		t.Fatalf("goal messages published = %d, want 2", h.goalPub.count())
	}
	resent := h.goalPub.last().(ActionGoal)
	if resent != original {
		t.Fatal("resend published a different envelope")
	}
	if resent.GetGoalID() != original.GetGoalID() {
		t.Fatal("resend changed the goal id")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	h := newTestHarness(t)

	h.handle.Shutdown(true)
	h.handle.Shutdown(true)

	if h.handle.IsActive() {
		t.Fatal("handle active after shutdown")
	}
}

func TestInactiveHandleReturnsSafeDefaults(t *testing.T) {
	h := newTestHarness(t)
	h.handle.Shutdown(false)

	if got := h.handle.GetCommState(); got != Done {
		t.Fatalf("inactive GetCommState = %v, want DONE", got)
	}
	if got := h.handle.GetTerminalState(); got != msgs.Lost {
		t.Fatalf("inactive GetTerminalState = %s, want LOST", msgs.StatusString(got))
	}
	if h.handle.GetResult() != nil {
		t.Fatal("inactive GetResult non-nil")
	}
	if err := h.handle.Resend(); err != ErrInactiveHandle {
		t.Fatalf("inactive Resend err = %v, want ErrInactiveHandle", err)
	}
	if err := h.handle.Cancel(); err != ErrInactiveHandle {
		t.Fatalf("inactive Cancel err = %v, want ErrInactiveHandle", err)
	}
	if h.cancelPub.count() != 0 {
		t.Fatal("inactive Cancel still published")
	}
}

// An inactive handle's state machine keeps absorbing messages, but no
// callbacks may fire for the handle.
func TestInactiveHandleSuppressesCallbacks(t *testing.T) {
	h := newTestHarness(t)
	h.handle.Shutdown(false)

	h.deliverStatus(msgs.GoalStatus{GoalID: h.goalID(), Status: msgs.Active})
	h.deliverFeedback(msgs.GoalStatus{GoalID: h.goalID(), Status: msgs.Active}, nil)
	h.deliverResult(msgs.GoalStatus{GoalID: h.goalID(), Status: msgs.Succeeded}, nil)

	if n := len(h.seenTransitions()); n != 0 {
		t.Fatalf("transition callbacks fired %d times on an inactive handle", n)
	}
	if h.feedbackCount() != 0 {
		t.Fatal("feedback callback fired on an inactive handle")
	}
	if got := h.handle.stateMachine.getState(); got != Done {
		t.Fatalf("underlying machine state = %v, want DONE", got)
	}
}

func TestTerminalStateBeforeDoneWarnsAndAnswers(t *testing.T) {
	h := newTestHarness(t)

	h.deliverStatus(msgs.GoalStatus{GoalID: h.goalID(), Status: msgs.Active})

	if got := h.handle.GetTerminalState(); got != msgs.Lost {
		t.Fatalf("premature terminal state = %s, want LOST", msgs.StatusString(got))
	}
	if got := h.handle.GetCommState(); got != Active {
		t.Fatalf("terminal state query changed state to %v", got)
	}
}
