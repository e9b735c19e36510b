package protoo

import "encoding/json"

// Error codes used by the pilot for request handling failures.
const (
	CodeBadRequest    = 400
	CodeNotFound      = 404
	CodeInternalError = 500
)

// Error is a protoo-level error carried by an error response.
type Error struct {
	Code   int
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// RequestMessage is the outgoing request frame.
type RequestMessage struct {
	Request bool        `json:"request"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Data    interface{} `json:"data"`
}

// ResponseMessage is the outgoing response frame, ok or error.
type ResponseMessage struct {
	Response    bool        `json:"response"`
	ID          interface{} `json:"id"`
	OK          bool        `json:"ok"`
	Data        interface{} `json:"data,omitempty"`
	ErrorCode   int         `json:"errorCode,omitempty"`
	ErrorReason string      `json:"errorReason,omitempty"`
}

// NotificationMessage is the outgoing notification frame.
type NotificationMessage struct {
	Notification bool        `json:"notification"`
	Method       string      `json:"method"`
	Data         interface{} `json:"data"`
}

// envelope classifies one inbound frame. Exactly one of the three
// discriminators is expected to be set; ID and Method stay untyped so
// wrong-typed fields surface as validation errors instead of dropped
// frames.
type envelope struct {
	Request      bool            `json:"request"`
	Response     bool            `json:"response"`
	Notification bool            `json:"notification"`
	ID           interface{}     `json:"id"`
	Method       interface{}     `json:"method"`
	Data         json.RawMessage `json:"data"`
	OK           bool            `json:"ok"`
	ErrorCode    int             `json:"errorCode"`
	ErrorReason  string          `json:"errorReason"`
}

// Request is an inbound request handed to the "request" listener.
type Request struct {
	ID     interface{}
	Method string
	Data   json.RawMessage
}

// Notification is an inbound notification handed to the
// "notification" listener.
type Notification struct {
	Method string
	Data   json.RawMessage
}

// AcceptFunc answers an inbound request with a success response.
type AcceptFunc func(data interface{})

// RejectFunc answers an inbound request with an error response.
type RejectFunc func(code int, reason string)
