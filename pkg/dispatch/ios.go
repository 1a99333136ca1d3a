package dispatch

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pushrelay/pushrelay/pkg/apns"
	"github.com/pushrelay/pushrelay/pkg/device"
	"github.com/pushrelay/pushrelay/pkg/logger"
)

func (d *Dispatcher) pushIOS(ctx context.Context, dev *device.Device, req *Request) (*Response, error) {
	if dev.DeviceToken == "" {
		return nil, NewError(http.StatusBadRequest, "device token not found")
	}
	if len(dev.DeviceToken) > device.MaxTokenLength {
		if err := d.registry.Delete(ctx, dev.DeviceKey); err != nil {
			d.log.ErrorContext(ctx, "failed to remove device with oversized token",
				logger.DeviceKey(dev.DeviceKey), logger.Error(err))
		}
		return nil, NewError(http.StatusBadRequest, "invalid device token, has been removed")
	}

	payload, pushType := buildAPNSPayload(req)
	headers := map[string]string{apns.HeaderPushType: pushType}
	if req.ID != "" {
		headers[apns.HeaderCollapseID] = req.ID
	}

	resp, err := d.client.Send(ctx, dev.DeviceToken, headers, payload)
	if err != nil {
		return nil, NewError(http.StatusInternalServerError, "push failed: "+err.Error())
	}
	if resp.OK() {
		return newSuccess(nil, ""), nil
	}

	if resp.TokenInvalid() {
		if err := d.registry.InvalidateToken(ctx, dev.DeviceKey); err != nil {
			d.log.ErrorContext(ctx, "failed to invalidate device token",
				logger.DeviceKey(dev.DeviceKey), logger.Error(err))
		} else {
			d.log.InfoContext(ctx, "device token invalidated after rejection",
				logger.DeviceKey(dev.DeviceKey), slog.Int("status", resp.Status))
		}
	}
	return nil, NewError(resp.Status, "push failed: "+resp.Message)
}

// buildAPNSPayload maps the request onto the APNs body and picks the push
// type header. A delete request becomes a silent background push so the
// client can retract the collapsed notification without showing a banner.
func buildAPNSPayload(req *Request) (*apns.Payload, string) {
	payload := &apns.Payload{
		Group:      req.Group,
		Call:       req.Call,
		IsArchive:  req.IsArchive,
		Icon:       req.Icon,
		Ciphertext: req.Ciphertext,
		Level:      req.Level,
		Volume:     req.Volume,
		URL:        req.URL,
		Copy:       req.Copy,
		Badge:      req.Badge,
		AutoCopy:   req.AutoCopy,
		Action:     req.Action,
		IV:         req.IV,
		Image:      req.Image,
		ID:         req.ID,
		Delete:     req.Delete,
		Markdown:   req.Markdown,
	}

	if req.Delete {
		payload.APS = apns.APS{
			ContentAvailable: 1,
			MutableContent:   1,
		}
		return payload, apns.PushTypeBackground
	}

	alert := &apns.Alert{
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Body:     req.Body,
	}
	if alert.Title == "" && alert.Subtitle == "" && alert.Body == "" {
		alert.Body = apns.EmptyBody
	}
	payload.APS = apns.APS{
		Alert:          alert,
		Sound:          apns.NormalizeSound(req.Sound),
		ThreadID:       req.Group,
		Category:       apns.Category,
		MutableContent: 1,
	}
	return payload, apns.PushTypeAlert
}
