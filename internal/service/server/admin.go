package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const adminWriteTimeout = 5 * time.Second

// AdminHandler exposes read-only views of the server for presentation layers.
func (s *Server) AdminHandler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/roster", s.handleRoster()).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleSessions()).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleSession()).Methods(http.MethodGet)
	r.HandleFunc("/describe", s.handleDescribe()).Methods(http.MethodGet)
	r.HandleFunc("/ws/events", s.handleEventsWS()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not_ready"))
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) startAdminServer() error {
	if s.opts.AdminAddress == "" {
		return nil
	}
	lis, err := net.Listen("tcp", s.opts.AdminAddress)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: adminWriteTimeout,
	}
	s.mu.Lock()
	s.adminHTTP = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("admin server stopped", zap.Error(err))
		}
	}()
	s.log.Info("admin server listening", zap.String("address", lis.Addr().String()))
	return nil
}

func (s *Server) handleRoster() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Roster())
	}
}

func (s *Server) handleSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.OnlineSessions())
	}
}

func (s *Server) handleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		sess, ok := s.registry.Get(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sess.Info())
	}
}

func (s *Server) handleDescribe() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Describe())
	}
}

// handleEventsWS streams lifecycle events as JSON text messages until the peer goes away.
func (s *Server) handleEventsWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("event feed upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		events, cancel := s.events.subscribe()
		defer cancel()

		// The feed is read-only; reading only detects the peer closing.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(adminWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					s.log.Debug("event feed write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
