package session

import (
	stdrsa "crypto/rsa"
	"sync"
	"time"

	"voip_chat/internal/model"
)

// Conn is the part of a connection a session needs.
type Conn interface {
	Send(env model.Envelope) error
	Close() error
}

type timedSender interface {
	SendTimeout(env model.Envelope, d time.Duration) error
}

// Session is the live record of a connected identity. Identity, name, connection and key are
// fixed at creation; the ping timestamps are guarded by the session's own lock.
type Session struct {
	entry       model.RosterEntry
	conn        Conn
	peerKey     *stdrsa.PublicKey
	connectedAt time.Time

	mu          sync.RWMutex
	lastPingOut time.Time
	lastPingAck time.Time
}

func New(entry model.RosterEntry, conn Conn, peerKey *stdrsa.PublicKey) *Session {
	return &Session{
		entry:       entry,
		conn:        conn,
		peerKey:     peerKey,
		connectedAt: time.Now().UTC(),
	}
}

func (s *Session) ID() string                    { return s.entry.ID }
func (s *Session) Name() string                  { return s.entry.Username }
func (s *Session) Entry() model.RosterEntry      { return s.entry }
func (s *Session) ConnectedAt() time.Time        { return s.connectedAt }
func (s *Session) Send(env model.Envelope) error { return s.conn.Send(env) }
func (s *Session) Close() error                  { return s.conn.Close() }

// SendWithin bounds the write by d when the connection supports write deadlines and falls
// back to Send otherwise.
func (s *Session) SendWithin(env model.Envelope, d time.Duration) error {
	if ts, ok := s.conn.(timedSender); ok && d > 0 {
		return ts.SendTimeout(env, d)
	}
	return s.conn.Send(env)
}

func (s *Session) MarkPingSent(t time.Time) {
	s.mu.Lock()
	s.lastPingOut = t
	s.mu.Unlock()
}

func (s *Session) MarkPingAcked(t time.Time) {
	s.mu.Lock()
	s.lastPingAck = t
	s.mu.Unlock()
}

// Liveness returns the last probe sent to and the last ping received from the peer.
// Zero values mean "never".
func (s *Session) Liveness() (sent, acked time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPingOut, s.lastPingAck
}

// Info is a plain copy of a session for presentation layers.
type Info struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Encrypted    bool      `json:"encrypted"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastPingSent time.Time `json:"last_ping_sent,omitzero"`
	LastPingAck  time.Time `json:"last_ping_acked,omitzero"`
}

func (s *Session) Info() Info {
	sent, acked := s.Liveness()
	return Info{
		ID:           s.ID(),
		Username:     s.Name(),
		Encrypted:    s.peerKey != nil,
		ConnectedAt:  s.connectedAt,
		LastPingSent: sent,
		LastPingAck:  acked,
	}
}
