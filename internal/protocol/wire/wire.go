package wire

import (
	stdrsa "crypto/rsa"
	"fmt"
	"net"
	"sync"
	"time"

	"voip_chat/internal/cryptographic/hybrid"
	"voip_chat/internal/model"
	"voip_chat/internal/protocol/codec"
	"voip_chat/internal/protocol/frame"
)

// Conn carries envelopes over one TCP connection. Frames are plaintext JSON until
// EnableEncryption is called; afterwards outbound envelopes are sealed for the peer key and
// inbound frames are opened with the local private key.
//
// Receive must be called from a single goroutine; Send is safe for concurrent use.
type Conn struct {
	conn   net.Conn
	framer *frame.Framer
	local  *stdrsa.PrivateKey

	mu   sync.RWMutex
	peer *stdrsa.PublicKey

	closeOnce sync.Once
	closeErr  error
}

func NewConn(c net.Conn, local *stdrsa.PrivateKey, maxFrame int) *Conn {
	return &Conn{
		conn:   c,
		framer: frame.New(c, maxFrame),
		local:  local,
	}
}

// EnableEncryption switches both directions to sealed frames.
func (c *Conn) EnableEncryption(peer *stdrsa.PublicKey) {
	c.mu.Lock()
	c.peer = peer
	c.mu.Unlock()
}

func (c *Conn) Secure() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peer != nil
}

func (c *Conn) peerKey() *stdrsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peer
}

// Send encodes env, seals it when encryption is on and writes one frame.
func (c *Conn) Send(env model.Envelope) error {
	body, err := codec.Encode(env)
	if err != nil {
		return err
	}
	if peer := c.peerKey(); peer != nil {
		if body, err = hybrid.SealBytes(body, peer); err != nil {
			return err
		}
	}
	return c.framer.WriteFrame(body)
}

// SendTimeout is Send bounded by d. The deadline also cuts short any write already blocked on
// the stream, so a timed out connection must be treated as dead.
func (c *Conn) SendTimeout(env model.Envelope, d time.Duration) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", frame.ErrConnection, err)
	}
	defer c.conn.SetWriteDeadline(time.Time{})
	return c.Send(env)
}

// Receive blocks for the next frame and decodes it. Errors wrap frame.ErrConnection,
// hybrid.ErrDecryption or codec.ErrMalformedEnvelope.
func (c *Conn) Receive() (model.Envelope, error) {
	body, err := c.framer.ReadFrame()
	if err != nil {
		return model.Envelope{}, err
	}
	if c.Secure() {
		if body, err = hybrid.OpenBytes(body, c.local); err != nil {
			return model.Envelope{}, err
		}
	}
	return codec.Decode(body)
}

// Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
