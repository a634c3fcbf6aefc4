package server

import (
	"context"
	stdrsa "crypto/rsa"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	rsaKey "voip_chat/internal/cryptographic/rsa"
	"voip_chat/internal/model"
	"voip_chat/internal/protocol/frame"
	"voip_chat/internal/repository/message"
	"voip_chat/internal/service/session"
)

const defaultSweepInterval = 10 * time.Second

type (
	// CallHandler is notified when a caller rings a live callee. It runs on the caller's
	// handler goroutine and must not block.
	CallHandler func(caller, callee model.RosterEntry)

	Options struct {
		Address       string
		AdminAddress  string
		MaxFrameSize  int
		SweepInterval time.Duration
		// ProbeTimeout bounds each SERVER_PING write. Defaults to half of SweepInterval and
		// is clamped below it.
		ProbeTimeout  time.Duration
		// PrivateKey is generated when nil.
		PrivateKey    *stdrsa.PrivateKey
		Logger        *zap.Logger
		Registerer    prometheus.Registerer
		OnCallRequest CallHandler
	}

	// Server accepts roster-gated TCP connections and routes envelopes between sessions.
	Server struct {
		opts     Options
		log      *zap.Logger
		roster   *model.Roster
		store    message.Store
		registry *session.Registry
		metrics  *serverMetrics
		gatherer prometheus.Gatherer
		events   *eventHub

		key    *stdrsa.PrivateKey
		keyPEM string

		mu        sync.Mutex
		listener  net.Listener
		adminHTTP *http.Server
		conns     map[net.Conn]struct{}
		stopping  bool
		startedAt time.Time
		cancel    context.CancelFunc

		ready    atomic.Bool
		stopOnce sync.Once
		wg       sync.WaitGroup
	}
)

func New(roster *model.Roster, store message.Store, opts Options) (*Server, error) {
	if roster == nil {
		return nil, errors.New("roster is required")
	}
	if store == nil {
		return nil, errors.New("message store is required")
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.ProbeTimeout <= 0 || opts.ProbeTimeout >= opts.SweepInterval {
		opts.ProbeTimeout = opts.SweepInterval / 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	key := opts.PrivateKey
	if key == nil {
		var err error
		if key, err = rsaKey.NewKeyPair(); err != nil {
			return nil, err
		}
	}
	keyPEM, err := rsaKey.EncodePublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	var (
		reg      prometheus.Registerer = opts.Registerer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg == nil {
		r := prometheus.NewRegistry()
		r.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Server{
		opts:     opts,
		log:      logger,
		roster:   roster,
		store:    store,
		registry: session.NewRegistry(),
		metrics:  newServerMetrics(reg),
		gatherer: gatherer,
		events:   newEventHub(),
		key:      key,
		keyPEM:   keyPEM,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Start binds the listener and launches the accept loop, the liveness sweeper and, when
// configured, the admin HTTP server. It returns once the listener is bound. Cancelling ctx
// stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.opts.Address, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.listener = lis
	s.cancel = cancel
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.startAdminServer(); err != nil {
		cancel()
		_ = lis.Close()
		return err
	}

	s.wg.Add(2)
	go s.acceptLoop(ctx, lis)
	go s.sweepLoop(ctx)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.ready.Store(true)
	s.events.publish(newEvent(model.ServerStart, model.RosterEntry{}, ""))
	s.log.Info("server listening", zap.String("address", lis.Addr().String()), zap.Int("roster", s.roster.Len()))
	return nil
}

// Stop closes the listener, ends the sweeper, closes every connection and waits for all
// server goroutines. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.ready.Store(false)

		s.mu.Lock()
		s.stopping = true
		lis, cancel, admin := s.listener, s.cancel, s.adminHTTP
		conns := make([]net.Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if lis != nil {
			_ = lis.Close()
		}
		if admin != nil {
			ctx, done := context.WithTimeout(context.Background(), time.Second)
			if err := admin.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Warn("admin server shutdown", zap.Error(err))
			}
			done()
		}

		for _, sess := range s.registry.CloseAll() {
			s.metrics.decSession("shutdown")
			s.events.publish(newEvent(model.Disconnect, sess.Entry(), "shutdown"))
		}
		// Connections still in the handshake are not in the registry.
		for _, c := range conns {
			_ = c.Close()
		}

		s.wg.Wait()
		s.events.publish(newEvent(model.ServerStop, model.RosterEntry{}, ""))
		s.log.Info("server stopped")
	})
}

func (s *Server) acceptLoop(ctx context.Context, lis net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// evict removes sess from the registry and closes its connection. Only the caller that
// actually removed the session reports it, so racing evictions are harmless.
func (s *Server) evict(sess *session.Session, reason string) bool {
	if !s.registry.RemoveSession(sess) {
		return false
	}
	_ = sess.Close()
	s.metrics.decSession(reason)
	s.events.publish(newEvent(model.Disconnect, sess.Entry(), reason))
	s.log.Info("session closed", zap.String("id", sess.ID()), zap.String("reason", reason))
	return true
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Roster returns every identity allowed to connect.
func (s *Server) Roster() []model.RosterEntry {
	return s.roster.Entries()
}

// OnlineSessions returns a copy of the live sessions ordered by identity.
func (s *Server) OnlineSessions() []session.Info {
	snap := s.registry.Snapshot()
	out := make([]session.Info, 0, len(snap))
	for _, sess := range snap {
		out = append(out, sess.Info())
	}
	return out
}

func (s *Server) Describe() model.ServerInfo {
	info := model.ServerInfo{
		Online: s.registry.Len(),
		Roster: s.roster.Len(),
	}
	s.mu.Lock()
	if s.listener != nil {
		info.Address = s.listener.Addr().String()
	}
	info.StartedAt = s.startedAt
	s.mu.Unlock()
	return info
}

// Subscribe returns a feed of lifecycle events and a function that ends the subscription.
func (s *Server) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// PublicKey returns the server's PEM encoded public key as sent in OK_CONNECT.
func (s *Server) PublicKey() string { return s.keyPEM }
