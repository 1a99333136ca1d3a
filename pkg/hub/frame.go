package hub

import (
	"time"

	"github.com/google/uuid"
)

// FrameType discriminates the channel message protocol.
type FrameType string

const (
	FrameMessage FrameType = "message"
	FramePing    FrameType = "ping"
	FramePong    FrameType = "pong"
	FrameAck     FrameType = "ack"
)

// Frame is one channel protocol message. Timestamp is Unix milliseconds.
type Frame struct {
	Type      FrameType `json:"type"`
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewFrame builds a frame stamped with the current time. An empty id is
// replaced with a fresh UUID.
func NewFrame(frameType FrameType, id string, data any) Frame {
	if id == "" {
		id = uuid.New().String()
	}
	return Frame{
		Type:      frameType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}
