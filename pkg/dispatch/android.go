package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pushrelay/pushrelay/pkg/device"
	"github.com/pushrelay/pushrelay/pkg/envelope"
	"github.com/pushrelay/pushrelay/pkg/hub"
	"github.com/pushrelay/pushrelay/pkg/logger"
	"github.com/pushrelay/pushrelay/pkg/spool"
)

func (d *Dispatcher) pushAndroid(ctx context.Context, dev *device.Device, req *Request) (*Response, error) {
	message := buildAndroidMessage(req)
	messageID := req.ID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	var (
		frameData any = message
		encrypted string
	)
	if dev.PublicKey != "" {
		plaintext, err := json.Marshal(message)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		encrypted, err = envelope.Encrypt(dev.PublicKey, plaintext)
		if err != nil {
			// Delivery beats confidentiality here: a device that registered
			// a bad key still gets its messages, in the clear.
			d.log.ErrorContext(ctx, "message encryption failed, sending plaintext",
				logger.DeviceKey(dev.DeviceKey), logger.MessageID(messageID), logger.Error(err))
			encrypted = ""
		} else {
			frameData = map[string]any{"encrypted_content": encrypted}
		}
	}

	if d.hub.Send(ctx, dev.DeviceKey, hub.NewFrame(hub.FrameMessage, messageID, frameData)) {
		return newSuccess(nil, ""), nil
	}

	queued := spool.Message{
		ID:        messageID,
		DeviceKey: dev.DeviceKey,
		Encrypted: encrypted,
	}
	if encrypted == "" {
		queued.Data = message
	}
	if err := d.queue.Enqueue(ctx, queued); err != nil {
		return nil, fmt.Errorf("save offline message: %w", err)
	}
	return newSuccess(nil, "message saved for offline delivery"), nil
}

// buildAndroidMessage collects the non-zero payload fields into the map the
// client app consumes. Absent fields are left out entirely rather than sent
// as zero values.
func buildAndroidMessage(req *Request) map[string]any {
	message := make(map[string]any)
	putString := func(key, value string) {
		if value != "" {
			message[key] = value
		}
	}
	putString("title", req.Title)
	putString("subtitle", req.Subtitle)
	putString("body", req.Body)
	putString("sound", req.Sound)
	putString("group", req.Group)
	putString("icon", req.Icon)
	putString("level", req.Level)
	putString("url", req.URL)
	putString("image", req.Image)
	putString("action", req.Action)
	putString("markdown", req.Markdown)
	if req.Call {
		message["call"] = true
	}
	if req.Copy {
		message["copy"] = true
	}
	if req.AutoCopy {
		message["autoCopy"] = true
	}
	if req.Volume != 0 {
		message["volume"] = req.Volume
	}
	if req.Badge != 0 {
		message["badge"] = req.Badge
	}
	return message
}
