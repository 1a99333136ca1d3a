package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pushrelay/pushrelay/pkg/apns"
	"github.com/pushrelay/pushrelay/pkg/async"
	"github.com/pushrelay/pushrelay/pkg/device"
	"github.com/pushrelay/pushrelay/pkg/hub"
	"github.com/pushrelay/pushrelay/pkg/spool"
)

// Dispatcher routes push requests to the right channel per device.
type Dispatcher struct {
	registry *device.Registry
	hub      *hub.Hub
	queue    *spool.Queue
	client   apns.Client
	maxBatch int
	log      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxBatchSize caps the number of device keys accepted in one batch
// push. Zero means unbounded.
func WithMaxBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxBatch = n
		}
	}
}

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(registry *device.Registry, h *hub.Hub, queue *spool.Queue, client apns.Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		hub:      h,
		queue:    queue,
		client:   client,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one push request.
//
// With DeviceKeys set it runs in batch mode: every key is delivered
// concurrently and independently, per-device failures are captured as
// result entries, and the response waits for all members. With only
// DeviceKey set the per-device outcome propagates to the caller directly.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if len(req.DeviceKeys) > 0 {
		return d.dispatchBatch(ctx, req)
	}

	if req.DeviceKey == "" {
		return nil, NewError(http.StatusBadRequest, "device key is empty")
	}
	return d.pushOne(ctx, req.DeviceKey, req)
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, req *Request) (*Response, error) {
	if d.maxBatch > 0 && len(req.DeviceKeys) > d.maxBatch {
		return nil, NewError(http.StatusBadRequest,
			fmt.Sprintf("batch push count exceeds the maximum limit: %d", d.maxBatch))
	}

	futures := make([]*async.Future[*Response], len(req.DeviceKeys))
	for i, deviceKey := range req.DeviceKeys {
		futures[i] = async.Async(ctx, deviceKey, func(ctx context.Context, key string) (*Response, error) {
			return d.pushOne(ctx, key, req)
		})
	}

	results := make([]BatchResult, len(req.DeviceKeys))
	for i, settled := range async.Settle(futures...) {
		deviceKey := req.DeviceKeys[i]
		switch {
		case settled.Err == nil:
			results[i] = BatchResult{Code: settled.Value.Code, DeviceKey: deviceKey}
		default:
			code := http.StatusInternalServerError
			message := settled.Err.Error()
			var dispatchErr *Error
			if errors.As(settled.Err, &dispatchErr) {
				code = dispatchErr.Code
				message = dispatchErr.Message
			}
			results[i] = BatchResult{Code: code, DeviceKey: deviceKey, Message: message}
		}
	}

	return newSuccess(results, ""), nil
}

func (d *Dispatcher) pushOne(ctx context.Context, deviceKey string, req *Request) (*Response, error) {
	dev, err := d.registry.Get(ctx, deviceKey)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, NewError(http.StatusBadRequest,
				fmt.Sprintf("failed to get device: failed to get [%s] from database", deviceKey))
		}
		return nil, fmt.Errorf("device lookup: %w", err)
	}

	if dev.IsAndroid() {
		return d.pushAndroid(ctx, dev, req)
	}
	return d.pushIOS(ctx, dev, req)
}
