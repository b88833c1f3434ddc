package models

// Announcement is the multicast discovery datagram. A proactive broadcast
// carries Announce=true; a direct unicast reply carries Announce=false and
// must not be re-broadcast.
type Announcement struct {
	DeviceInfo
	Protocol string `json:"protocol"` // "http" or "https"
	Port     int    `json:"port"`
	Announce bool   `json:"announce"`
}

func (anno Announcement) GetDeviceInfo() DeviceInfo {
	return anno.DeviceInfo
}

// HTTPS reports whether the announced transfer endpoint speaks TLS.
func (anno Announcement) HTTPS() bool {
	return anno.Protocol == "https"
}

type DeviceInfo struct {
	IP          string `json:"-"` // not part of the protocol
	Alias       string `json:"alias"`
	Version     string `json:"version"`
	DeviceModel string `json:"deviceModel,omitempty"` // nullable per protocol
	DeviceType  string `json:"deviceType,omitempty"`  // nullable per protocol
	Fingerprint string `json:"fingerprint"`
	Download    bool   `json:"download,omitempty"` // optional, default false
}

var knownDeviceTypes = map[string]bool{
	"mobile":   true,
	"desktop":  true,
	"web":      true,
	"headless": true,
	"server":   true,
}

// NormalizeDeviceType maps unknown or empty device types to "desktop",
// the protocol's fallback.
func NormalizeDeviceType(devType string) string {
	if knownDeviceTypes[devType] {
		return devType
	}
	return "desktop"
}

func NewDeviceInfo(alias string, fingerprint string) DeviceInfo {
	return DeviceInfo{
		Alias:       alias,
		Version:     "2.0",
		DeviceModel: "localsend-go",
		DeviceType:  "headless",
		Fingerprint: fingerprint,
		Download:    false,
	}
}
