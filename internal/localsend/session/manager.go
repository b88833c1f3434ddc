package session

import (
	"log/slog"
	"sync"
	"time"

	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
)

const (
	vacuumInterval = 5 * time.Second
	// inactivityTimeout garbage-collects sessions whose sender went away
	// without cancelling.
	inactivityTimeout = 30 * time.Second
)

// Manager is the receiver's registry of in-flight sessions. Sessions are
// partitioned by id; nothing here serializes unrelated sessions.
type Manager struct {
	sessions *sync.Map
	done     chan struct{}
	once     sync.Once

	// OnFinished, when set, observes each session exactly once after it
	// reaches a terminal state and before it is dropped from the registry.
	OnFinished func(*Session)
}

func NewManager() *Manager {
	return &Manager{
		sessions: &sync.Map{},
		done:     make(chan struct{}),
	}
}

func (m *Manager) Start() {
	go m.vacuumTask()
}

func (m *Manager) Stop() {
	m.once.Do(func() { close(m.done) })
}

// Register creates a session for the accepted subset of a manifest.
func (m *Manager) Register(saveDir string, sender models.DeviceInfo, accepted []models.FileMeta) (*Session, error) {
	sess, err := NewSession(saveDir, sender, accepted)
	if err != nil {
		return nil, err
	}
	m.sessions.Store(sess.Id, sess)
	return sess, nil
}

func (m *Manager) Get(sessionId string) (*Session, error) {
	v, exist := m.sessions.Load(sessionId)
	if !exist {
		return nil, lserrors.ErrNotFound
	}
	return v.(*Session), nil
}

// Cancel is idempotent: cancelling an unknown or already-terminal session
// is a no-op.
func (m *Manager) Cancel(sessionId string) {
	v, exist := m.sessions.Load(sessionId)
	if !exist {
		return
	}
	v.(*Session).Cancel()
}

// vacuumTask drops finished and abandoned sessions from the registry.
func (m *Manager) vacuumTask() {
	ticker := time.NewTicker(vacuumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sessions.Range(func(key, value any) bool {
				sess := value.(*Session)

				if !sess.Finished() {
					if time.Since(sess.IdleSince()) > inactivityTimeout {
						slog.Info("Cancel inactive session", "session", sess.Id)
						sess.Cancel()
					}
					return true
				}

				m.sessions.Delete(key)
				if m.OnFinished != nil {
					m.OnFinished(sess)
				}
				slog.Debug("Remove finished session", "session", sess.Id)
				return true
			})
		}
	}
}
