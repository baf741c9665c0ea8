package msgs

import (
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// DynamicMessageType abstracts a payload shape that is only known at
// runtime. It gives user goal/feedback/result bodies a MessageType
// without requiring generated code: the payload is an arbitrary JSON
// document held in a map.
type DynamicMessageType struct {
	name string
}

// NewDynamicMessageType creates a dynamic payload type with the given
// wire name.
func NewDynamicMessageType(name string) *DynamicMessageType {
	return &DynamicMessageType{name: name}
}

// Name returns the wire name of the payload type.
func (t *DynamicMessageType) Name() string { return t.name }

// NewMessage creates an empty payload instance; required for
// msgs.MessageType.
func (t *DynamicMessageType) NewMessage() Message { return t.NewDynamicMessage() }

// NewDynamicMessage creates an empty payload instance with its concrete
// type, for callers that want to populate Data directly.
func (t *DynamicMessageType) NewDynamicMessage() *DynamicMessage {
	return &DynamicMessage{
		dynamicType: t,
		data:        make(map[string]interface{}),
	}
}

// DynamicMessage is a schema-less payload message backed by a
// field-name-to-value map. Values decode as string, float64, bool, nil,
// nested map[string]interface{} or []interface{}.
type DynamicMessage struct {
	dynamicType *DynamicMessageType
	data        map[string]interface{}
}

// Type returns the dynamic type of the message; required for
// msgs.Message.
func (m *DynamicMessage) Type() MessageType { return m.dynamicType }

// Data returns the mutable field map of the message.
func (m *DynamicMessage) Data() map[string]interface{} { return m.data }

// Marshal encodes the field map as a JSON document.
func (m *DynamicMessage) Marshal() ([]byte, error) {
	return json.Marshal(m.data)
}

// Unmarshal decodes a JSON document into the field map, replacing any
// existing contents.
func (m *DynamicMessage) Unmarshal(data []byte) error {
	fields := make(map[string]interface{})
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		v, err := jsonValue(value, dataType)
		if err != nil {
			return errors.Wrap(err, "error decoding field "+string(key))
		}
		fields[string(key)] = v
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "error decoding dynamic message")
	}

	m.data = fields
	return nil
}

// jsonValue converts one jsonparser value into its map representation.
func jsonValue(value []byte, dataType jsonparser.ValueType) (interface{}, error) {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, err
		}
		return s, nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		if err != nil {
			return nil, err
		}
		return f, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return nil, err
		}
		return b, nil
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		nested := make(map[string]interface{})
		err := jsonparser.ObjectEach(value, func(key []byte, v []byte, dt jsonparser.ValueType, _ int) error {
			item, err := jsonValue(v, dt)
			if err != nil {
				return err
			}
			nested[string(key)] = item
			return nil
		})
		if err != nil {
			return nil, err
		}
		return nested, nil
	case jsonparser.Array:
		items := []interface{}{}
		var itemErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, _ error) {
			item, err := jsonValue(v, dt)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, item)
		})
		if err != nil {
			return nil, err
		}
		if itemErr != nil {
			return nil, itemErr
		}
		return items, nil
	default:
		return nil, errors.Errorf("unsupported JSON value type %v", dataType)
	}
}
