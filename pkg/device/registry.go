package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pushrelay/pushrelay/pkg/kv"
)

const (
	deviceKeyPrefix = "device_"
	countKey        = "deviceCount"
)

// Registry is the durable store of device records.
type Registry struct {
	store          kv.Store
	allowNewDevice bool
	log            *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAllowNewDevice controls whether registrations may mint fresh device
// keys. When disabled, a registration that does not resolve to an existing
// record fails with ErrRegistrationDisabled.
func WithAllowNewDevice(allow bool) RegistryOption {
	return func(r *Registry) {
		r.allowNewDevice = allow
	}
}

// WithRegistryLogger sets the logger for the Registry.
func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry creates a registry persisting through the given store.
// New-device registration is allowed by default.
func NewRegistry(store kv.Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:          store,
		allowNewDevice: true,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterParams carries a registration request. Type is detected from the
// populated credential when empty: a token means iOS, otherwise Android.
type RegisterParams struct {
	Key       string // existing device key, optional
	Type      Type
	Token     string // APNs token, iOS
	PublicKey string // PEM-encoded RSA public key, Android
}

// Register creates or refreshes a device record and returns it.
//
// A supplied key that resolves to an existing record is reused: iOS
// registrations update the token, Android registrations keep the public key
// registered first. Otherwise a fresh key is minted, or the registration is
// refused when new devices are disabled. The sentinel token "deleted" is an
// unregister request.
func (r *Registry) Register(ctx context.Context, params RegisterParams) (*Device, error) {
	deviceType := params.Type
	if deviceType == "" {
		if params.Token != "" {
			deviceType = TypeIOS
		} else {
			deviceType = TypeAndroid
		}
	}

	switch deviceType {
	case TypeIOS:
		return r.registerIOS(ctx, params)
	case TypeAndroid:
		return r.registerAndroid(ctx, params)
	default:
		return nil, fmt.Errorf("unsupported device type %q", deviceType)
	}
}

func (r *Registry) registerIOS(ctx context.Context, params RegisterParams) (*Device, error) {
	if params.Token == "" {
		return nil, ErrEmptyDeviceToken
	}
	if len(params.Token) > MaxTokenLength {
		return nil, ErrInvalidDeviceToken
	}

	key := params.Key
	existing, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if key, err = r.mintKey(); err != nil {
			return nil, err
		}
	}

	if params.Token == TokenDeleted {
		if err := r.Delete(ctx, key); err != nil {
			return nil, err
		}
		return &Device{
			DeviceKey:   key,
			DeviceType:  TypeIOS,
			DeviceToken: TokenDeleted,
		}, nil
	}

	now := time.Now().UnixMilli()
	dev := &Device{
		DeviceKey:   key,
		DeviceType:  TypeIOS,
		DeviceToken: params.Token,
		CreatedAt:   now,
		LastSeen:    now,
	}
	if existing != nil {
		dev.CreatedAt = existing.CreatedAt
	}

	if err := r.save(ctx, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

func (r *Registry) registerAndroid(ctx context.Context, params RegisterParams) (*Device, error) {
	if params.PublicKey == "" {
		return nil, ErrMissingPublicKey
	}

	key := params.Key
	existing, err := r.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if key, err = r.mintKey(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UnixMilli()
	dev := &Device{
		DeviceKey:  key,
		DeviceType: TypeAndroid,
		PublicKey:  params.PublicKey,
		CreatedAt:  now,
		LastSeen:   now,
	}
	if existing != nil {
		// The public key is immutable after first registration
		if existing.PublicKey != "" {
			dev.PublicKey = existing.PublicKey
		}
		dev.CreatedAt = existing.CreatedAt
	}

	if err := r.save(ctx, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

// resolve returns the record for key, nil when the key is empty or unknown.
func (r *Registry) resolve(ctx context.Context, key string) (*Device, error) {
	if key == "" {
		return nil, nil
	}
	dev, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return dev, nil
}

func (r *Registry) mintKey() (string, error) {
	if !r.allowNewDevice {
		return "", ErrRegistrationDisabled
	}
	return NewKey()
}

// Get returns the record for a device key, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, key string) (*Device, error) {
	raw, err := r.store.Get(ctx, storageKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var dev Device
	if err := json.Unmarshal(raw, &dev); err != nil {
		return nil, fmt.Errorf("decode device record: %w", err)
	}
	if dev.DeviceType == "" {
		dev.DeviceType = TypeIOS
	}
	return &dev, nil
}

// InvalidateToken clears the APNs token of a record after the channel
// reported it permanently invalid. The record itself is kept.
func (r *Registry) InvalidateToken(ctx context.Context, key string) error {
	dev, err := r.Get(ctx, key)
	if err != nil {
		return err
	}

	dev.DeviceToken = ""
	dev.LastSeen = time.Now().UnixMilli()
	return r.save(ctx, dev)
}

// Delete removes the record for a device key and decrements the counter
// when a record existed.
func (r *Registry) Delete(ctx context.Context, key string) error {
	sk := storageKey(key)

	if _, err := r.store.Get(ctx, sk); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := r.store.Delete(ctx, sk); err != nil {
		return err
	}
	if err := r.updateCount(ctx, -1); err != nil {
		r.log.WarnContext(ctx, "failed to decrement device count", "error", err)
	}
	return nil
}

// Count reports the number of registered devices. The counter is maintained
// incrementally; the backing store has no efficient full scan.
func (r *Registry) Count(ctx context.Context) (int, error) {
	raw, err := r.store.Get(ctx, countKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	count, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (r *Registry) save(ctx context.Context, dev *Device) error {
	raw, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("encode device record: %w", err)
	}

	sk := storageKey(dev.DeviceKey)

	_, err = r.store.Get(ctx, sk)
	isNew := errors.Is(err, kv.ErrNotFound)
	if err != nil && !isNew {
		return err
	}

	if err := r.store.Put(ctx, sk, raw, 0); err != nil {
		return err
	}
	if isNew {
		if err := r.updateCount(ctx, 1); err != nil {
			r.log.WarnContext(ctx, "failed to increment device count", "error", err)
		}
	}
	return nil
}

func (r *Registry) updateCount(ctx context.Context, diff int) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	count += diff
	if count < 0 {
		count = 0
	}
	return r.store.Put(ctx, countKey, []byte(strconv.Itoa(count)), 0)
}

func storageKey(key string) string {
	return deviceKeyPrefix + SanitizeKey(key)
}
