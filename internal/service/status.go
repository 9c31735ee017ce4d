package service

import (
	"encoding/json"
	"fmt"
)

const (
	glyphOK   = "✅"
	glyphFail = "❌"
)

// Status is the outcome of an admin operation as shown to the operator.
// Err carries the cause of a failure for the transport layer.
type Status struct {
	OK      bool
	Message string
	Err     error
}

// Success builds a successful status.
func Success(format string, args ...interface{}) Status {
	return Status{OK: true, Message: fmt.Sprintf(format, args...)}
}

// Failure builds a failed status wrapping err.
func Failure(err error, format string, args ...interface{}) Status {
	return Status{Message: fmt.Sprintf(format, args...), Err: err}
}

// String renders the message with its glyph.
func (s Status) String() string {
	if s.OK {
		return glyphOK + " " + s.Message
	}
	return glyphFail + " " + s.Message
}

// MarshalJSON emits ok, message and the glyph-prefixed status line.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Status  string `json:"status"`
	}{s.OK, s.Message, s.String()})
}
