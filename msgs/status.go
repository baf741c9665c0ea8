package msgs

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// Server-side status codes carried on the wire.
const (
	Pending    uint8 = 0
	Active     uint8 = 1
	Preempted  uint8 = 2
	Succeeded  uint8 = 3
	Aborted    uint8 = 4
	Rejected   uint8 = 5
	Preempting uint8 = 6
	Recalling  uint8 = 7
	Recalled   uint8 = 8
	Lost       uint8 = 9
)

// StatusString renders a status code for logs.
func StatusString(status uint8) string {
	switch status {
	case Pending:
		return "PENDING"
	case Active:
		return "ACTIVE"
	case Preempted:
		return "PREEMPTED"
	case Succeeded:
		return "SUCCEEDED"
	case Aborted:
		return "ABORTED"
	case Rejected:
		return "REJECTED"
	case Preempting:
		return "PREEMPTING"
	case Recalling:
		return "RECALLING"
	case Recalled:
		return "RECALLED"
	case Lost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// Header carries the publish timestamp of an envelope.
type Header struct {
	Stamp Time `json:"stamp"`
}

// GoalID identifies one submitted goal. Equality is on the ID string
// only; the stamp records submission time.
type GoalID struct {
	ID    string `json:"id"`
	Stamp Time   `json:"stamp"`
}

// Equal reports identifier equality, ignoring stamps.
func (g GoalID) Equal(other GoalID) bool {
	return g.ID == other.ID
}

// GoalStatus is the server's view of one goal.
type GoalStatus struct {
	GoalID GoalID `json:"goal_id"`
	Status uint8  `json:"status"`
	Text   string `json:"text"`
}

// GoalStatusArray is the periodic status publication covering every
// goal the server tracks.
type GoalStatusArray struct {
	Header     Header       `json:"header"`
	StatusList []GoalStatus `json:"status_list"`
}

// GoalIDType is the MessageType for cancel messages.
type GoalIDType struct{}

func (GoalIDType) Name() string        { return "goalwire_msgs/GoalID" }
func (GoalIDType) NewMessage() Message { return &GoalID{} }

func (g *GoalID) Type() MessageType { return GoalIDType{} }

func (g *GoalID) Marshal() ([]byte, error) {
	return json.Marshal(g)
}

func (g *GoalID) Unmarshal(data []byte) error {
	id, err := parseGoalID(data)
	if err != nil {
		return err
	}
	*g = id
	return nil
}

// GoalStatusArrayType is the MessageType for status publications.
type GoalStatusArrayType struct{}

func (GoalStatusArrayType) Name() string        { return "goalwire_msgs/GoalStatusArray" }
func (GoalStatusArrayType) NewMessage() Message { return &GoalStatusArray{} }

func (sa *GoalStatusArray) Type() MessageType { return GoalStatusArrayType{} }

func (sa *GoalStatusArray) Marshal() ([]byte, error) {
	return json.Marshal(sa)
}

func (sa *GoalStatusArray) Unmarshal(data []byte) error {
	header, err := ParseHeader(data, "header")
	if err != nil {
		return err
	}

	list := []GoalStatus{}
	var parseErr error
	// A nil list marshals as null; decode that as an empty list.
	if _, listType, _, _ := jsonparser.Get(data, "status_list"); listType != jsonparser.Null {
		_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
			st, err := parseGoalStatus(value)
			if err != nil {
				parseErr = err
				return
			}
			list = append(list, st)
		}, "status_list")
		if err != nil && err != jsonparser.KeyPathNotFoundError {
			return errors.Wrap(err, "error decoding status list")
		}
		if parseErr != nil {
			return parseErr
		}
	}

	sa.Header = header
	sa.StatusList = list
	return nil
}

// ParseTime extracts a timestamp from raw JSON at the given key path.
// A missing path decodes as the zero time.
func ParseTime(data []byte, keys ...string) (Time, error) {
	stamp, dataType, _, err := jsonparser.Get(data, keys...)
	if dataType == jsonparser.NotExist {
		return Time{}, nil
	}
	if err != nil {
		return Time{}, errors.Wrap(err, "error decoding timestamp")
	}

	sec, err := jsonparser.GetInt(stamp, "sec")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return Time{}, errors.Wrap(err, "error decoding timestamp seconds")
	}
	nsec, err := jsonparser.GetInt(stamp, "nsec")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return Time{}, errors.Wrap(err, "error decoding timestamp nanoseconds")
	}

	return Time{Sec: uint32(sec), NSec: uint32(nsec)}, nil
}

// ParseHeader extracts an envelope header from raw JSON at the given
// key path.
func ParseHeader(data []byte, keys ...string) (Header, error) {
	stampKeys := append(append([]string{}, keys...), "stamp")
	stamp, err := ParseTime(data, stampKeys...)
	if err != nil {
		return Header{}, err
	}
	return Header{Stamp: stamp}, nil
}

// ParseGoalID extracts a goal identifier from raw JSON at the given key
// path. Transports use this to peek at envelope ids without a full
// decode.
func ParseGoalID(data []byte, keys ...string) (GoalID, error) {
	value, dataType, _, err := jsonparser.Get(data, keys...)
	if dataType == jsonparser.NotExist {
		return GoalID{}, nil
	}
	if err != nil {
		return GoalID{}, errors.Wrap(err, "error decoding goal id")
	}
	return parseGoalID(value)
}

func parseGoalID(data []byte) (GoalID, error) {
	id, err := jsonparser.GetString(data, "id")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return GoalID{}, errors.Wrap(err, "error decoding goal id string")
	}
	stamp, err := ParseTime(data, "stamp")
	if err != nil {
		return GoalID{}, err
	}
	return GoalID{ID: id, Stamp: stamp}, nil
}

// ParseGoalStatus extracts a goal status from raw JSON at the given key
// path.
func ParseGoalStatus(data []byte, keys ...string) (GoalStatus, error) {
	value, dataType, _, err := jsonparser.Get(data, keys...)
	if dataType == jsonparser.NotExist {
		return GoalStatus{}, nil
	}
	if err != nil {
		return GoalStatus{}, errors.Wrap(err, "error decoding goal status")
	}
	return parseGoalStatus(value)
}

func parseGoalStatus(data []byte) (GoalStatus, error) {
	goalID, err := ParseGoalID(data, "goal_id")
	if err != nil {
		return GoalStatus{}, err
	}

	status, err := jsonparser.GetInt(data, "status")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return GoalStatus{}, errors.Wrap(err, "error decoding status code")
	}

	text, err := jsonparser.GetString(data, "text")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return GoalStatus{}, errors.Wrap(err, "error decoding status text")
	}

	return GoalStatus{GoalID: goalID, Status: uint8(status), Text: text}, nil
}
