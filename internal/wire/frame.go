// Package wire defines the JSON-RPC 2.0 frame types exchanged between the
// bridge, its subprocess, and connected clients.
package wire

import "encoding/json"

// Version is the literal JSON-RPC version string every frame carries.
const Version = "2.0"

// ID is a JSON-RPC request/response identifier, which may be a string or a
// number on the wire. It round-trips whichever shape it was decoded from.
type ID struct {
	str   string
	num   int64
	isStr bool
	isSet bool
}

// NewStringID builds a string-valued ID.
func NewStringID(s string) ID { return ID{str: s, isStr: true, isSet: true} }

// NewIntID builds a numeric ID.
func NewIntID(n int64) ID { return ID{num: n, isSet: true} }

// IsSet reports whether the ID was present on the wire.
func (i ID) IsSet() bool { return i.isSet }

// String renders the ID for logging and map keys regardless of its
// underlying representation.
func (i ID) String() string {
	if !i.isSet {
		return ""
	}
	if i.isStr {
		return i.str
	}
	return jsonNumberString(i.num)
}

func jsonNumberString(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// MarshalJSON preserves the original wire shape.
func (i ID) MarshalJSON() ([]byte, error) {
	if !i.isSet {
		return []byte("null"), nil
	}
	if i.isStr {
		return json.Marshal(i.str)
	}
	return json.Marshal(i.num)
}

// UnmarshalJSON accepts either a JSON string or number.
func (i *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = ID{str: s, isStr: true, isSet: true}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = ID{num: n, isSet: true}
	return nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Bridge-local JSON-RPC error codes.
const (
	ErrCodeInvalidToolPath = -32602
	ErrCodeFileToolIO      = -32000
)

// RawFrame is the wire shape of a single JSON-RPC 2.0 object, used for
// decoding before the frame is classified into Notification/Request/Response.
type RawFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind discriminates the tagged sum a RawFrame decodes into, per the
// "dynamic dispatch over wire-frame variants" design note.
type Kind int

const (
	KindNotification Kind = iota
	KindRequest
	KindResponse
)

// Classify returns which of Notification/Request/Response this frame is.
// A frame with no ID and no result/error is a Notification; a frame with
// an ID and a Method is a Request; a frame with an ID and a Result or
// Error (no Method) is a Response.
func (f *RawFrame) Classify() Kind {
	switch {
	case f.ID != nil && f.ID.IsSet() && f.Method == "":
		return KindResponse
	case f.ID != nil && f.ID.IsSet() && f.Method != "":
		return KindRequest
	default:
		return KindNotification
	}
}

// NewNotification builds a notification frame (no id).
func NewNotification(method string, params any) (*RawFrame, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &RawFrame{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewRequest builds a request frame.
func NewRequest(id ID, method string, params any) (*RawFrame, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &RawFrame{JSONRPC: Version, ID: &id, Method: method, Params: raw}, nil
}

// NewResult builds a success response frame.
func NewResult(id ID, result any) (*RawFrame, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	return &RawFrame{JSONRPC: Version, ID: &id, Result: raw}, nil
}

// NewError builds an error response frame.
func NewError(id ID, code int, message string, data any) *RawFrame {
	f := &RawFrame{JSONRPC: Version, ID: &id, Error: &Error{Code: code, Message: message}}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			f.Error.Data = raw
		}
	}
	return f
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Encode serializes the frame as a single wire datagram line.
func (f *RawFrame) Encode() ([]byte, error) {
	f.JSONRPC = Version
	return json.Marshal(f)
}

// Decode parses a single wire datagram into a RawFrame.
func Decode(data []byte) (*RawFrame, error) {
	var f RawFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
