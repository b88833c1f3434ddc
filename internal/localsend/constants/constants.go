package constants

import "time"

const (
	UploadPath    = "/api/localsend/v2/upload"
	PreuploadPath = "/api/localsend/v2/prepare-upload"
	CancelPath    = "/api/localsend/v2/cancel"
	InfoPath      = "/api/localsend/v2/info"
)

const (
	// DefaultPort is shared by the HTTP endpoint and the multicast listener.
	DefaultPort    = 53317
	MulticastGroup = "224.0.0.167"
)

const (
	// AdvertiseInterval is how often the discovery engine re-announces.
	AdvertiseInterval = 5 * time.Second
	// PeerLiveness is how long a registry entry counts as alive without
	// a renewing announcement.
	PeerLiveness = 10 * time.Second
)
