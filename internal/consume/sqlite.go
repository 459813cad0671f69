package consume

import (
	"fmt"

	"github.com/anhofmann/radio-tracking/internal/storage"
	"github.com/anhofmann/radio-tracking/internal/tracking"
)

// SQLiteSink appends detections to the storage layer. Signals land in the
// session of their device; matched groups land in the session of their
// first member's device.
type SQLiteSink struct {
	store    *storage.Store
	sessions map[string]int64 // device id -> session id
}

// NewSQLiteSink creates a sink over an open store with the given
// per-device sessions.
func NewSQLiteSink(store *storage.Store, sessions map[string]int64) *SQLiteSink {
	return &SQLiteSink{store: store, sessions: sessions}
}

func (s *SQLiteSink) PublishSignal(sig tracking.Signal) error {
	sessionID, ok := s.sessions[sig.Device]
	if !ok {
		return fmt.Errorf("no session for device %s", sig.Device)
	}
	return s.store.InsertSignal(sessionID, sig)
}

func (s *SQLiteSink) PublishMatch(m *tracking.MatchedSignal) error {
	sessionID, ok := s.sessions[m.Members[0].Device]
	if !ok {
		return fmt.Errorf("no session for device %s", m.Members[0].Device)
	}
	return s.store.InsertMatch(sessionID, m)
}

// Close is a no-op; the store is owned by the application.
func (s *SQLiteSink) Close() error {
	return nil
}
