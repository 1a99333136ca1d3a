package apns

import "strings"

// Header names and push types for the APNs request.
const (
	HeaderPushType   = "apns-push-type"
	HeaderCollapseID = "apns-collapse-id"
	HeaderTopic      = "apns-topic"

	PushTypeAlert      = "alert"
	PushTypeBackground = "background"
)

// Payload construction defaults.
const (
	// DefaultSound plays when the caller specifies none.
	DefaultSound = "1107"

	// SoundExtension is appended to sound names lacking it.
	SoundExtension = ".caf"

	// Category is the fixed notification category the client app registers.
	Category = "myNotificationCategory"

	// EmptyBody substitutes the alert body when title, subtitle, and body
	// are all empty - APNs drops alerts with no visible content.
	EmptyBody = "Empty Message"
)

// Alert is the visible part of an alerting notification.
type Alert struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body,omitempty"`
}

// APS is the Apple-defined envelope of a remote notification.
// See https://developer.apple.com/documentation/usernotifications/generating-a-remote-notification
type APS struct {
	Alert            *Alert `json:"alert,omitempty"`
	Sound            string `json:"sound,omitempty"`
	ThreadID         string `json:"thread-id,omitempty"`
	Category         string `json:"category,omitempty"`
	ContentAvailable int    `json:"content-available,omitempty"`
	MutableContent   int    `json:"mutable-content,omitempty"`
}

// Payload is the full APNs request body: the aps envelope plus the
// extension block of non-standard fields the client app reads. Zero-valued
// extension fields are omitted from the wire form.
type Payload struct {
	APS APS `json:"aps"`

	Group      string `json:"group,omitempty"`
	Call       bool   `json:"call,omitempty"`
	IsArchive  bool   `json:"isarchive,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
	Level      string `json:"level,omitempty"`
	Volume     int    `json:"volume,omitempty"`
	URL        string `json:"url,omitempty"`
	Copy       bool   `json:"copy,omitempty"`
	Badge      int    `json:"badge,omitempty"`
	AutoCopy   bool   `json:"autocopy,omitempty"`
	Action     string `json:"action,omitempty"`
	IV         string `json:"iv,omitempty"`
	Image      string `json:"image,omitempty"`
	ID         string `json:"id,omitempty"`
	Delete     bool   `json:"delete,omitempty"`
	Markdown   string `json:"markdown,omitempty"`
}

// NormalizeSound applies the sound default policy: empty picks
// DefaultSound, anything else gets SoundExtension appended when missing.
func NormalizeSound(sound string) string {
	if sound == "" {
		sound = DefaultSound
	}
	if !strings.HasSuffix(sound, SoundExtension) {
		return sound + SoundExtension
	}
	return sound
}
