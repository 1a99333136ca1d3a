package dispatch

import "time"

// Request is one logical push: a single device key or a bounded batch,
// plus the payload bag. All payload fields are optional; zero values are
// treated as absent and omitted from channel payloads.
type Request struct {
	DeviceKey  string   `json:"device_key,omitempty"`
	DeviceKeys []string `json:"device_keys,omitempty"`

	Title      string `json:"title,omitempty"`
	Subtitle   string `json:"subtitle,omitempty"`
	Body       string `json:"body,omitempty"`
	Sound      string `json:"sound,omitempty"`
	Group      string `json:"group,omitempty"`
	Call       bool   `json:"call,omitempty"`
	IsArchive  bool   `json:"isArchive,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
	Level      string `json:"level,omitempty"`
	Volume     int    `json:"volume,omitempty"`
	URL        string `json:"url,omitempty"`
	Image      string `json:"image,omitempty"`
	Copy       bool   `json:"copy,omitempty"`
	Badge      int    `json:"badge,omitempty"`
	AutoCopy   bool   `json:"autoCopy,omitempty"`
	Action     string `json:"action,omitempty"`
	IV         string `json:"iv,omitempty"`
	ID         string `json:"id,omitempty"`
	Delete     bool   `json:"delete,omitempty"`
	Markdown   string `json:"markdown,omitempty"`
}

// Response is the outcome envelope returned to the caller.
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// BatchResult is one member's outcome inside a batch response, in the
// order of the requested device keys.
type BatchResult struct {
	Code      int    `json:"code"`
	DeviceKey string `json:"device_key"`
	Message   string `json:"message,omitempty"`
}

func newSuccess(data any, message string) *Response {
	if message == "" {
		message = "success"
	}
	return &Response{
		Code:      200,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}
