package server

import (
	"context"
	stdrsa "crypto/rsa"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	rsaKey "voip_chat/internal/cryptographic/rsa"
	"voip_chat/internal/model"
	"voip_chat/internal/protocol/codec"
	"voip_chat/internal/protocol/wire"
	"voip_chat/internal/repository/message"
	"voip_chat/internal/service/session"
)

const (
	noticeAlreadyConnected = "You are already connected."
	noticeStoreDegraded    = "Message delivered but could not be stored."
)

// serveConn drives one connection through handshake and the request loop. It returns when
// the connection is closed.
func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	conn := wire.NewConn(c, s.key, s.opts.MaxFrameSize)
	defer conn.Close()

	log := s.log.With(zap.String("remote", c.RemoteAddr().String()))
	sess, ok := s.handshake(conn, log)
	if !ok {
		return
	}
	reason := "connection lost"
	defer func() { s.evict(sess, reason) }()

	log = log.With(zap.String("id", sess.ID()))
	for {
		env, err := conn.Receive()
		if err != nil {
			s.logReceiveError(log, err)
			if errors.Is(err, codec.ErrMalformedEnvelope) {
				_ = conn.Send(model.NewEnvelope(model.InternalError, "Malformed request."))
			}
			return
		}

		start := time.Now()
		reply, done := s.dispatch(ctx, sess, env, log)
		s.metrics.observeRequest(env.Code.String(), reply.Code.String(), time.Since(start))

		if err := sess.Send(reply); err != nil {
			log.Debug("reply failed", zap.Error(err))
			return
		}
		if done {
			reason = "disconnect"
			return
		}
	}
}

func (s *Server) logReceiveError(log *zap.Logger, err error) {
	switch {
	case errors.Is(err, net.ErrClosed):
		log.Debug("connection closed locally")
	case errors.Is(err, codec.ErrMalformedEnvelope):
		log.Warn("malformed envelope", zap.Error(err))
	default:
		log.Info("connection lost", zap.Error(err))
	}
}

// handshake reads the plaintext CONNECT frame. On success the session is live in the
// registry and encryption is enabled when the peer offered a key.
func (s *Server) handshake(conn *wire.Conn, log *zap.Logger) (*session.Session, bool) {
	reject := func(result string, env model.Envelope) (*session.Session, bool) {
		s.metrics.recordHandshake(result)
		if err := conn.Send(env); err != nil {
			log.Debug("handshake reply failed", zap.Error(err))
		}
		return nil, false
	}

	env, err := conn.Receive()
	if err != nil {
		s.logReceiveError(log, err)
		if errors.Is(err, codec.ErrMalformedEnvelope) {
			return reject("malformed", model.NewEnvelope(model.InternalError, "Malformed request."))
		}
		s.metrics.recordHandshake("dropped")
		return nil, false
	}
	if env.Code != model.Connect {
		return reject("unexpected", model.NewEnvelope(model.BadRequest, "Expected CONNECT."))
	}

	var req model.ConnectRequest
	if err := codec.Bind(env, &req); err != nil || req.ID == "" {
		return reject("invalid", model.NewEnvelope(model.BadRequest, "Invalid CONNECT payload."))
	}
	entry, ok := s.roster.ByID(req.ID)
	if !ok {
		log.Warn("identity not in roster", zap.String("id", req.ID))
		return reject("unknown", model.NewEnvelope(model.BadRequest, fmt.Sprintf("Client %s is not allowed", req.ID)))
	}
	if s.registry.Has(entry.ID) {
		return reject("duplicate", model.NewEnvelope(model.OK, noticeAlreadyConnected))
	}

	keyPEM := req.PublicKey
	if keyPEM == "" {
		keyPEM = env.PublicKey
	}
	var peerKey *stdrsa.PublicKey
	if keyPEM != "" {
		if peerKey, err = rsaKey.DecodePublicKey(keyPEM); err != nil {
			log.Warn("invalid client key", zap.String("id", entry.ID), zap.Error(err))
			return reject("invalid", model.NewEnvelope(model.BadRequest, "Invalid public key."))
		}
	}

	ack := model.NewEnvelope(model.OKConnect, entry.Username)
	ack.PublicKey = s.keyPEM
	if err := conn.Send(ack); err != nil {
		s.metrics.recordHandshake("dropped")
		return nil, false
	}
	if peerKey != nil {
		conn.EnableEncryption(peerKey)
	}

	// The session becomes visible to pushes only once the peer has its OK_CONNECT and the
	// connection is sealed, so no push can overtake the handshake reply.
	sess := session.New(entry, conn, peerKey)
	if err := s.registry.Insert(sess); err != nil {
		return reject("duplicate", model.NewEnvelope(model.OK, noticeAlreadyConnected))
	}

	s.metrics.recordHandshake("accepted")
	s.metrics.incSession()
	s.events.publish(newEvent(model.Connect, entry, ""))
	log.Info("client connected", zap.String("id", entry.ID), zap.String("username", entry.Username), zap.Bool("encrypted", peerKey != nil))
	return sess, true
}

// dispatch handles one request of an authenticated session. done reports that the
// connection must close after the reply.
func (s *Server) dispatch(ctx context.Context, sess *session.Session, env model.Envelope, log *zap.Logger) (reply model.Envelope, done bool) {
	if !s.ownsRequest(sess, env) {
		return model.NewEnvelope(model.BadRequest, "Request identity does not match the session."), false
	}

	switch env.Code {
	case model.Ping:
		sess.MarkPingAcked(time.Now().UTC())
		return model.NewEnvelope(model.Ping, nil), false
	case model.Disconnect:
		log.Info("client disconnected")
		return model.NewEnvelope(model.OK, fmt.Sprintf("Client %s disconnected.", sess.ID())), true
	case model.FriendsList:
		return s.friendsList(sess), false
	case model.SendText:
		return s.sendText(ctx, sess, env, log), false
	case model.MessagesRetrieve:
		return s.retrieve(ctx, sess, env, log), false
	case model.Describe:
		return model.NewEnvelope(model.Describe, s.Describe()), false
	case model.VoiceCallRequest:
		return s.callRequest(sess, env, log), false
	default:
		log.Warn("unrecognized request", zap.Int("code", int(env.Code)), zap.Bool("known_code", env.Code.Known()))
		return model.NewEnvelope(model.InternalError, fmt.Sprintf("Unrecognized request code %d.", int(env.Code))), false
	}
}

// ownsRequest rejects payloads that claim another identity. Requests without an id are
// routed by the session.
func (s *Server) ownsRequest(sess *session.Session, env model.Envelope) bool {
	if env.Payload == nil {
		return true
	}
	var id model.Identified
	if err := codec.Bind(env, &id); err != nil {
		// Non-object payloads carry no identity.
		return true
	}
	return id.ID == "" || id.ID == sess.ID()
}

func (s *Server) friendsList(sess *session.Session) model.Envelope {
	entries := s.roster.Entries()
	friends := make([]model.Friend, 0, len(entries))
	for _, e := range entries {
		if e.ID == sess.ID() {
			continue
		}
		friends = append(friends, model.Friend{
			ID:       e.ID,
			Username: e.Username,
			Online:   s.registry.Has(e.ID),
		})
	}
	return model.NewEnvelope(model.FriendsList, friends)
}

func (s *Server) sendText(ctx context.Context, sess *session.Session, env model.Envelope, log *zap.Logger) model.Envelope {
	var req model.SendTextRequest
	if err := codec.Bind(env, &req); err != nil || req.To == "" {
		return model.NewEnvelope(model.BadRequest, "Invalid SEND_TEXT payload.")
	}

	live, online := s.registry.ByName(req.To)
	var recipient model.RosterEntry
	if online {
		recipient = live.Entry()
	} else {
		entry, ok := s.roster.ByName(req.To)
		if !ok {
			return model.NewEnvelope(model.NotFound, fmt.Sprintf("User %s not found.", req.To))
		}
		recipient = entry
	}

	sent := time.Now().UTC()
	if req.Datetime != "" {
		if t, err := model.ParseTimestamp(req.Datetime); err == nil {
			sent = t
		}
	}

	msg := model.Message{
		ID:       uuid.NewString(),
		From:     sess.ID(),
		FromName: sess.Name(),
		To:       recipient.ID,
		ToName:   recipient.Username,
		Datetime: sent,
		Body:     req.Message,
	}
	storeErr := s.store.Append(ctx, msg)
	if storeErr != nil {
		s.metrics.recordStoreError()
		log.Error("store message failed", zap.String("to", recipient.ID), zap.Error(storeErr))
	}

	delivered := false
	if online {
		push := model.NewEnvelope(model.SendText, model.TextEvent{
			From:     sess.Name(),
			Message:  msg.Body,
			Datetime: model.FormatTimestamp(sent),
		})
		if err := live.Send(push); err != nil {
			log.Info("push failed, recipient gone", zap.String("to", recipient.ID), zap.Error(err))
			s.evict(live, "push failed")
		} else {
			delivered = true
		}
	}

	switch {
	case storeErr == nil:
		return model.NewEnvelope(model.OK, "Message sent.")
	case delivered:
		return model.NewEnvelope(model.OK, noticeStoreDegraded)
	default:
		return model.NewEnvelope(model.InternalError, "Message could not be stored.")
	}
}

func (s *Server) retrieve(ctx context.Context, sess *session.Session, env model.Envelope, log *zap.Logger) model.Envelope {
	var req model.RetrieveRequest
	if env.Payload != nil {
		if err := codec.Bind(env, &req); err != nil {
			return model.NewEnvelope(model.BadRequest, "Invalid MESSAGES_RETRIEVE payload.")
		}
	}

	filter := message.Filter{Peer: req.FromUser}
	for _, bound := range []struct {
		raw   string
		parse func(string) (time.Time, error)
		dst   **time.Time
	}{
		{req.FromDate, model.ParseTimestamp, &filter.From},
		{req.ToDate, model.ParseUpperBound, &filter.To},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := bound.parse(bound.raw)
		if err != nil {
			return model.NewEnvelope(model.BadRequest, err.Error())
		}
		*bound.dst = &t
	}

	records, err := s.store.Query(ctx, sess.ID(), filter)
	if err != nil {
		s.metrics.recordStoreError()
		log.Error("query messages failed", zap.Error(err))
		return model.NewEnvelope(model.InternalError, "Messages are unavailable.")
	}
	return model.NewEnvelope(model.MessagesRetrieve, model.MessagesResponse{Messages: records})
}

func (s *Server) callRequest(sess *session.Session, env model.Envelope, log *zap.Logger) model.Envelope {
	var req model.CallRequest
	if err := codec.Bind(env, &req); err != nil || req.To == "" {
		return model.NewEnvelope(model.BadRequest, "Invalid VOICECALL_REQUEST payload.")
	}

	callee, ok := s.registry.ByName(req.To)
	if !ok {
		return model.NewEnvelope(model.NotFound, fmt.Sprintf("User %s is not online.", req.To))
	}
	if err := callee.Send(model.NewEnvelope(model.VoiceCallRequest, model.CallEvent{From: sess.Name()})); err != nil {
		s.evict(callee, "push failed")
		return model.NewEnvelope(model.NotFound, fmt.Sprintf("User %s is not online.", req.To))
	}

	log.Info("call requested", zap.String("callee", callee.ID()))
	if s.opts.OnCallRequest != nil {
		s.opts.OnCallRequest(sess.Entry(), callee.Entry())
	}
	return model.NewEnvelope(model.OK, fmt.Sprintf("Calling %s.", callee.Name()))
}
