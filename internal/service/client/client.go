package client

import (
	"context"
	stdrsa "crypto/rsa"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"voip_chat/internal/cryptographic/hybrid"
	rsaKey "voip_chat/internal/cryptographic/rsa"
	"voip_chat/internal/model"
	"voip_chat/internal/protocol/codec"
	"voip_chat/internal/protocol/wire"
)

const eventBufferSize = 64

var ErrClosed = errors.New("client closed")

type (
	Options struct {
		// Plaintext skips the key exchange; every frame stays unsealed.
		Plaintext    bool
		PrivateKey   *stdrsa.PrivateKey
		MaxFrameSize int
		Logger       *zap.Logger
	}

	// RequestError is a non-success reply from the server.
	RequestError struct {
		Code    model.Code
		Message string
	}

	// Query filters MESSAGES_RETRIEVE. Zero times are unbounded.
	Query struct {
		From time.Time
		To   time.Time
		Peer string
	}

	// Client speaks the chat protocol over one TCP connection. Requests are serialized;
	// server pushes (SEND_TEXT, VOICECALL_REQUEST, SERVER_PING) are delivered on Events.
	Client struct {
		raw  net.Conn
		conn *wire.Conn
		key  *stdrsa.PrivateKey
		log  *zap.Logger

		id   string
		name string

		reqMu     sync.Mutex
		responses chan model.Envelope
		events    chan model.Envelope

		done      chan struct{}
		closeOnce sync.Once
		errMu     sync.Mutex
		err       error
	}
)

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Dial opens a TCP connection. Call Connect before any other request.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	key := opts.PrivateKey
	if key == nil && !opts.Plaintext {
		var err error
		if key, _, err = hybrid.GenerateKeyPair(); err != nil {
			return nil, err
		}
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if opts.Plaintext {
		key = nil
	}

	return &Client{
		raw:       raw,
		conn:      wire.NewConn(raw, key, opts.MaxFrameSize),
		key:       key,
		log:       logger,
		responses: make(chan model.Envelope, 1),
		events:    make(chan model.Envelope, eventBufferSize),
		done:      make(chan struct{}),
	}, nil
}

// Connect authenticates as id and returns the display name assigned by the roster.
func (c *Client) Connect(ctx context.Context, id, username string) (string, error) {
	req := model.ConnectRequest{ID: id, Username: username}
	if c.key != nil {
		pem, err := rsaKey.EncodePublicKey(&c.key.PublicKey)
		if err != nil {
			return "", err
		}
		req.PublicKey = pem
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.raw.SetDeadline(deadline)
		defer c.raw.SetDeadline(time.Time{})
	}
	if err := c.conn.Send(model.NewEnvelope(model.Connect, req)); err != nil {
		return "", err
	}
	reply, err := c.conn.Receive()
	if err != nil {
		return "", err
	}
	if reply.Code != model.OKConnect {
		_ = c.conn.Close()
		return "", &RequestError{Code: reply.Code, Message: codec.Text(reply)}
	}

	if c.key != nil && reply.PublicKey != "" {
		serverKey, err := rsaKey.DecodePublicKey(reply.PublicKey)
		if err != nil {
			_ = c.conn.Close()
			return "", fmt.Errorf("server key: %w", err)
		}
		c.conn.EnableEncryption(serverKey)
	}

	c.id = id
	c.name = codec.Text(reply)
	go c.readLoop()

	c.log.Info("connected", zap.String("id", id), zap.String("username", c.name), zap.Bool("encrypted", c.conn.Secure()))
	return c.name, nil
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Name() string { return c.name }

// Events carries server pushes. It is closed when the connection ends.
func (c *Client) Events() <-chan model.Envelope { return c.events }

// Done is closed when the connection ends; Err reports why.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		env, err := c.conn.Receive()
		if err != nil {
			c.shutdown(err)
			return
		}

		switch env.Code {
		case model.SendText, model.VoiceCallRequest, model.ServerPing:
			select {
			case c.events <- env:
			default:
				c.log.Warn("event dropped, consumer too slow", zap.String("code", env.Code.String()))
			}
		default:
			select {
			case c.responses <- env:
			default:
				c.log.Warn("unsolicited response", zap.String("code", env.Code.String()))
			}
		}
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		_ = c.conn.Close()
		close(c.done)
	})
}

// Close drops the connection without DISCONNECT.
func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// roundTrip sends one request and waits for its reply. The protocol has no request ids, so
// a request abandoned by ctx closes the connection rather than desynchronize it.
func (c *Client) roundTrip(ctx context.Context, code model.Code, payload any) (model.Envelope, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.done:
		return model.Envelope{}, c.closedErr()
	default:
	}

	if err := c.conn.Send(model.NewEnvelope(code, payload)); err != nil {
		c.shutdown(err)
		return model.Envelope{}, err
	}

	select {
	case env := <-c.responses:
		return env, nil
	case <-c.done:
		// The reply may have arrived just before the server closed the connection.
		select {
		case env := <-c.responses:
			return env, nil
		default:
		}
		return model.Envelope{}, c.closedErr()
	case <-ctx.Done():
		c.shutdown(ctx.Err())
		return model.Envelope{}, ctx.Err()
	}
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return ErrClosed
}

func (c *Client) call(ctx context.Context, code model.Code, payload any, want model.Code, out any) error {
	reply, err := c.roundTrip(ctx, code, payload)
	if err != nil {
		return err
	}
	if reply.Code != want {
		return &RequestError{Code: reply.Code, Message: codec.Text(reply)}
	}
	if out == nil {
		return nil
	}
	return codec.Bind(reply, out)
}

func (c *Client) self() model.Identified { return model.Identified{ID: c.id} }

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, model.Ping, c.self(), model.Ping, nil)
}

// FriendsList returns every other roster member with its online flag.
func (c *Client) FriendsList(ctx context.Context) ([]model.Friend, error) {
	var friends []model.Friend
	if err := c.call(ctx, model.FriendsList, c.self(), model.FriendsList, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// SendText sends body to the user with display name to and returns the server notice.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	var notice string
	err := c.call(ctx, model.SendText, model.SendTextRequest{
		Identified: c.self(),
		From:       c.name,
		To:         to,
		Message:    body,
		Datetime:   model.FormatTimestamp(time.Now()),
	}, model.OK, &notice)
	return notice, err
}

func (c *Client) Messages(ctx context.Context, q Query) ([]model.Record, error) {
	req := model.RetrieveRequest{Identified: c.self(), FromUser: q.Peer}
	if !q.From.IsZero() {
		req.FromDate = model.FormatTimestamp(q.From)
	}
	if !q.To.IsZero() {
		req.ToDate = model.FormatTimestamp(q.To)
	}

	var resp model.MessagesResponse
	if err := c.call(ctx, model.MessagesRetrieve, req, model.MessagesRetrieve, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Call rings a live user.
func (c *Client) Call(ctx context.Context, to string) error {
	return c.call(ctx, model.VoiceCallRequest, model.CallRequest{Identified: c.self(), To: to}, model.OK, nil)
}

func (c *Client) Describe(ctx context.Context) (model.ServerInfo, error) {
	var info model.ServerInfo
	err := c.call(ctx, model.Describe, c.self(), model.Describe, &info)
	return info, err
}

// Disconnect ends the session cleanly and closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, model.Disconnect, c.self())
	c.shutdown(ErrClosed)
	if err != nil {
		return err
	}
	if reply.Code != model.OK && reply.Code != model.OKDisconnect {
		return &RequestError{Code: reply.Code, Message: codec.Text(reply)}
	}
	c.log.Info("disconnected", zap.String("id", c.id))
	return nil
}
