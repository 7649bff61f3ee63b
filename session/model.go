package session

import "time"

// Status is the lifecycle state of a session record.
type Status string

const (
	// StatusActive is the only state a session is created in.
	StatusActive Status = "active"
	// StatusRevoked is terminal. A revoked session never becomes active again.
	StatusRevoked Status = "revoked"
)

// DeviceType is the coarse device class derived from the User-Agent.
type DeviceType string

const (
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceDesktop DeviceType = "Desktop"
	DeviceUnknown DeviceType = "Unknown"
)

// Browser is the browser family derived from the User-Agent. Anything
// ClassifyBrowser does not recognise reports BrowserUnknown.
type Browser string

const (
	BrowserChrome  Browser = "Chrome"
	BrowserFirefox Browser = "Firefox"
	BrowserSafari  Browser = "Safari"
	BrowserEdge    Browser = "Edge"
	BrowserOpera   Browser = "Opera"
	BrowserUnknown Browser = "Unknown"
)

// Session is one authenticated device. Records are stored as JSON documents
// in Redis; timestamps are unix seconds.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Token is the jti of the access token most recently issued for this
	// session. Unique across all sessions; refreshed on every rotation.
	Token string `json:"token"`

	DeviceType    DeviceType `json:"device_type"`
	Browser       Browser    `json:"browser"`
	ClientAddress string     `json:"client_address,omitempty"`

	Status       Status `json:"status"`
	RevokeReason string `json:"revoke_reason,omitempty"`

	CreatedAt    int64 `json:"created_at"`
	LastActivity int64 `json:"last_activity"`
	ExpiresAt    int64 `json:"expires_at"`
}

// Current reports whether the session should be displayed as live: active
// and not yet past its expiry.
func (s *Session) Current(now time.Time) bool {
	return s.Status == StatusActive && now.Unix() < s.ExpiresAt
}
