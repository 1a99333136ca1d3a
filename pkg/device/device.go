package device

// Type discriminates the two supported device platforms.
type Type string

const (
	TypeIOS     Type = "ios"
	TypeAndroid Type = "android"
)

const (
	// MaxTokenLength is the longest accepted APNs device token.
	MaxTokenLength = 128

	// TokenDeleted is the sentinel token value treated as an unregister request.
	TokenDeleted = "deleted"
)

// Device is a registered client endpoint. Exactly one of DeviceToken and
// PublicKey is meaningfully populated, determined by DeviceType.
// Timestamps are Unix milliseconds.
type Device struct {
	DeviceKey   string `json:"device_key"`
	DeviceType  Type   `json:"device_type,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	LastSeen    int64  `json:"last_seen"`
}

// IsIOS reports whether the record belongs to an iOS device.
// Records stored before the type field existed decode as iOS.
func (d *Device) IsIOS() bool {
	return d.DeviceType == TypeIOS || d.DeviceType == ""
}

// IsAndroid reports whether the record belongs to an Android device.
func (d *Device) IsAndroid() bool {
	return d.DeviceType == TypeAndroid
}
