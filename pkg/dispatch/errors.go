package dispatch

import (
	"fmt"
	"time"
)

// Error is a dispatch failure carrying the channel's status code, suitable
// for returning to the caller as-is.
type Error struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewError creates a status-carrying dispatch error stamped with the
// current time.
func NewError(code int, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch: %s (code %d)", e.Message, e.Code)
}
