package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// DeviceKey records the device identifier under the key "device_key".
// If key is empty, it returns an empty Attr.
func DeviceKey(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("device_key", key)
}

// MessageID records the push message identifier under the key "message_id".
// If id is empty, it returns an empty Attr.
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// Component records the emitting component under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
