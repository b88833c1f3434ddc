package localsend

import (
	"errors"
	"sync"
	"time"

	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	"github.com/zpp0196/localsend-go/internal/models"
)

var ErrNoSuchDevice = errors.New("no such device")

// RegistryEvent is emitted whenever a peer is discovered or renewed.
type RegistryEvent struct {
	Fingerprint string
	Device      models.Announcement
}

type registryEntry struct {
	anno     models.Announcement
	lastSeen time.Time
}

// Registry is the table of known peers, keyed by fingerprint. It is only
// mutated by the discovery engine; everyone else reads snapshots. Entries
// older than the liveness window are excluded from peer selection but only
// evicted by Prune.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]registryEntry
	liveness time.Duration
	events   chan RegistryEvent
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		devices:  make(map[string]registryEntry),
		liveness: constants.PeerLiveness,
		events:   make(chan RegistryEvent, 128),
		now:      time.Now,
	}
}

// Events reports discovery updates. Emission never blocks: if the consumer
// lags, events are dropped rather than slowing discovery down.
func (r *Registry) Events() <-chan RegistryEvent {
	return r.events
}

// Put replaces the entry for the announcement's fingerprint wholesale and
// stamps it as just seen.
func (r *Registry) Put(ip string, anno models.Announcement) {
	anno.IP = ip
	anno.DeviceType = models.NormalizeDeviceType(anno.DeviceType)

	r.mu.Lock()
	r.devices[anno.Fingerprint] = registryEntry{anno: anno, lastSeen: r.now()}
	r.mu.Unlock()

	select {
	case r.events <- RegistryEvent{Fingerprint: anno.Fingerprint, Device: anno}:
	default:
	}
}

// Get returns the device with the given fingerprint, stale or not.
func (r *Registry) Get(fingerprint string) (models.Announcement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.devices[fingerprint]
	if !ok {
		return models.Announcement{}, ErrNoSuchDevice
	}
	return entry.anno, nil
}

// Stale reports whether the fingerprint is unknown or past the liveness
// window, i.e. whether a fresh announcement for it is news.
func (r *Registry) Stale(fingerprint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.devices[fingerprint]
	return !ok || r.now().Sub(entry.lastSeen) > r.liveness
}

// Peers returns every device seen within the liveness window, keyed by
// fingerprint. The map is a copy and safe to hold.
func (r *Registry) Peers() map[string]models.Announcement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	result := make(map[string]models.Announcement, len(r.devices))
	for fp, entry := range r.devices {
		if now.Sub(entry.lastSeen) <= r.liveness {
			result[fp] = entry.anno
		}
	}
	return result
}

// Prune evicts entries not renewed within maxAge.
func (r *Registry) Prune(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for fp, entry := range r.devices {
		if now.Sub(entry.lastSeen) > maxAge {
			delete(r.devices, fp)
		}
	}
}
