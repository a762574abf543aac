package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager tracks the active call sessions for health output and metrics.
// Sessions share no state through it; it is bookkeeping only.
type Manager struct {
	logger   *logrus.Logger
	mutex    sync.RWMutex
	sessions map[string]time.Time
}

// NewManager creates an empty session manager.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[string]time.Time),
	}
}

// Add registers a session by call SID.
func (m *Manager) Add(callSID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[callSID] = time.Now()
}

// Remove unregisters a session.
func (m *Manager) Remove(callSID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, callSID)
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetActiveCallCount implements the HTTP server's metrics provider.
func (m *Manager) GetActiveCallCount() int {
	return m.Count()
}

// GetMetrics returns a snapshot for the /status endpoint.
func (m *Manager) GetMetrics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var oldest time.Time
	for _, started := range m.sessions {
		if oldest.IsZero() || started.Before(oldest) {
			oldest = started
		}
	}

	stats := map[string]interface{}{
		"active_sessions": len(m.sessions),
	}
	if !oldest.IsZero() {
		stats["longest_session"] = time.Since(oldest).Round(time.Second).String()
	}
	return stats
}
