package action

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/goalwire/goalwire/msgs"
)

// Concrete envelope implementations. Each envelope type wraps the
// payload type it was derived from so incoming bytes can be decoded
// without knowing the payload shape up front.

type actionGoalType struct {
	name     string
	goalType msgs.MessageType
}

func (t *actionGoalType) Name() string               { return t.name }
func (t *actionGoalType) NewMessage() msgs.Message   { return t.NewGoalMessage() }
func (t *actionGoalType) NewGoalMessage() ActionGoal {
	return &actionGoalMessage{msgType: t, goal: t.goalType.NewMessage()}
}

type actionGoalMessage struct {
	msgType *actionGoalType
	header  msgs.Header
	goalID  msgs.GoalID
	goal    msgs.Message
}

func (m *actionGoalMessage) Type() msgs.MessageType      { return m.msgType }
func (m *actionGoalMessage) GetHeader() msgs.Header      { return m.header }
func (m *actionGoalMessage) SetHeader(h msgs.Header)     { m.header = h }
func (m *actionGoalMessage) GetGoalID() msgs.GoalID      { return m.goalID }
func (m *actionGoalMessage) SetGoalID(id msgs.GoalID)    { m.goalID = id }
func (m *actionGoalMessage) GetGoal() msgs.Message       { return m.goal }
func (m *actionGoalMessage) SetGoal(goal msgs.Message)   { m.goal = goal }

func (m *actionGoalMessage) Marshal() ([]byte, error) {
	payload, err := marshalPayload(m.goal)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding goal payload")
	}
	return json.Marshal(struct {
		Header msgs.Header     `json:"header"`
		GoalID msgs.GoalID     `json:"goal_id"`
		Goal   json.RawMessage `json:"goal"`
	}{m.header, m.goalID, payload})
}

func (m *actionGoalMessage) Unmarshal(data []byte) error {
	header, err := msgs.ParseHeader(data, "header")
	if err != nil {
		return err
	}
	goalID, err := msgs.ParseGoalID(data, "goal_id")
	if err != nil {
		return err
	}
	goal, err := unmarshalPayload(data, m.msgType.goalType, "goal")
	if err != nil {
		return errors.Wrap(err, "error decoding goal payload")
	}

	m.header = header
	m.goalID = goalID
	m.goal = goal
	return nil
}

type actionFeedbackType struct {
	name         string
	feedbackType msgs.MessageType
}

func (t *actionFeedbackType) Name() string             { return t.name }
func (t *actionFeedbackType) NewMessage() msgs.Message { return t.NewFeedbackMessage() }
func (t *actionFeedbackType) NewFeedbackMessage() ActionFeedback {
	return &actionFeedbackMessage{msgType: t, feedback: t.feedbackType.NewMessage()}
}

type actionFeedbackMessage struct {
	msgType  *actionFeedbackType
	header   msgs.Header
	status   msgs.GoalStatus
	feedback msgs.Message
}

func (m *actionFeedbackMessage) Type() msgs.MessageType        { return m.msgType }
func (m *actionFeedbackMessage) GetHeader() msgs.Header        { return m.header }
func (m *actionFeedbackMessage) SetHeader(h msgs.Header)       { m.header = h }
func (m *actionFeedbackMessage) GetStatus() msgs.GoalStatus    { return m.status }
func (m *actionFeedbackMessage) SetStatus(s msgs.GoalStatus)   { m.status = s }
func (m *actionFeedbackMessage) GetFeedback() msgs.Message     { return m.feedback }
func (m *actionFeedbackMessage) SetFeedback(fb msgs.Message)   { m.feedback = fb }

func (m *actionFeedbackMessage) Marshal() ([]byte, error) {
	payload, err := marshalPayload(m.feedback)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding feedback payload")
	}
	return json.Marshal(struct {
		Header   msgs.Header     `json:"header"`
		Status   msgs.GoalStatus `json:"status"`
		Feedback json.RawMessage `json:"feedback"`
	}{m.header, m.status, payload})
}

func (m *actionFeedbackMessage) Unmarshal(data []byte) error {
	header, err := msgs.ParseHeader(data, "header")
	if err != nil {
		return err
	}
	status, err := msgs.ParseGoalStatus(data, "status")
	if err != nil {
		return err
	}
	feedback, err := unmarshalPayload(data, m.msgType.feedbackType, "feedback")
	if err != nil {
		return errors.Wrap(err, "error decoding feedback payload")
	}

	m.header = header
	m.status = status
	m.feedback = feedback
	return nil
}

type actionResultType struct {
	name       string
	resultType msgs.MessageType
}

func (t *actionResultType) Name() string             { return t.name }
func (t *actionResultType) NewMessage() msgs.Message { return t.NewResultMessage() }
func (t *actionResultType) NewResultMessage() ActionResult {
	return &actionResultMessage{msgType: t, result: t.resultType.NewMessage()}
}

type actionResultMessage struct {
	msgType *actionResultType
	header  msgs.Header
	status  msgs.GoalStatus
	result  msgs.Message
}

func (m *actionResultMessage) Type() msgs.MessageType      { return m.msgType }
func (m *actionResultMessage) GetHeader() msgs.Header      { return m.header }
func (m *actionResultMessage) SetHeader(h msgs.Header)     { m.header = h }
func (m *actionResultMessage) GetStatus() msgs.GoalStatus  { return m.status }
func (m *actionResultMessage) SetStatus(s msgs.GoalStatus) { m.status = s }
func (m *actionResultMessage) GetResult() msgs.Message     { return m.result }
func (m *actionResultMessage) SetResult(r msgs.Message)    { m.result = r }

func (m *actionResultMessage) Marshal() ([]byte, error) {
	payload, err := marshalPayload(m.result)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding result payload")
	}
	return json.Marshal(struct {
		Header msgs.Header     `json:"header"`
		Status msgs.GoalStatus `json:"status"`
		Result json.RawMessage `json:"result"`
	}{m.header, m.status, payload})
}

func (m *actionResultMessage) Unmarshal(data []byte) error {
	header, err := msgs.ParseHeader(data, "header")
	if err != nil {
		return err
	}
	status, err := msgs.ParseGoalStatus(data, "status")
	if err != nil {
		return err
	}
	result, err := unmarshalPayload(data, m.msgType.resultType, "result")
	if err != nil {
		return errors.Wrap(err, "error decoding result payload")
	}

	m.header = header
	m.status = status
	m.result = result
	return nil
}

// defaultAction bundles one empty envelope of each kind.
type defaultAction struct {
	goal     ActionGoal
	feedback ActionFeedback
	result   ActionResult
}

func (a *defaultAction) GetActionGoal() ActionGoal         { return a.goal }
func (a *defaultAction) GetActionFeedback() ActionFeedback { return a.feedback }
func (a *defaultAction) GetActionResult() ActionResult     { return a.result }

func marshalPayload(payload msgs.Message) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := payload.Marshal()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func unmarshalPayload(data []byte, payloadType msgs.MessageType, key string) (msgs.Message, error) {
	value, dataType, _, err := jsonparser.Get(data, key)
	if dataType == jsonparser.NotExist || dataType == jsonparser.Null {
		return payloadType.NewMessage(), nil
	}
	if err != nil {
		return nil, err
	}

	payload := payloadType.NewMessage()
	if err := payload.Unmarshal(value); err != nil {
		return nil, err
	}
	return payload, nil
}
