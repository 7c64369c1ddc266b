package message

import "fmt"

// Response is the reply a channel hands back to its caller, or a destination
// records for the source to pick up.
type Response struct {
	Status        Status `json:"status"`
	Message       string `json:"message"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Error         string `json:"error,omitempty"`
}

// NewResponse creates a response with the given status and payload.
func NewResponse(status Status, msg string) *Response {
	return &Response{Status: status, Message: msg}
}

// FromValue normalizes a value found in a response map. A *Response or
// Response passes through unchanged; nil stays nil; anything else is wrapped
// as a SENT response whose message is the value's default formatting.
func FromValue(value any) *Response {
	switch v := value.(type) {
	case nil:
		return nil
	case *Response:
		return v
	case Response:
		return &v
	default:
		return NewResponse(StatusSent, fmt.Sprintf("%v", v))
	}
}
