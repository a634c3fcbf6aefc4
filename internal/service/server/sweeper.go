package server

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voip_chat/internal/model"
)

func (s *Server) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep probes every live session once with SERVER_PING. A failed or timed out write evicts
// the session. Probes run in parallel and each is bounded by ProbeTimeout, so a peer that
// stops reading cannot hold up the cycle or the next one.
func (s *Server) sweep() int {
	s.metrics.recordSweep()

	var (
		g       errgroup.Group
		evicted atomic.Int32
	)
	for _, sess := range s.registry.Snapshot() {
		g.Go(func() error {
			sess.MarkPingSent(time.Now().UTC())
			if err := sess.SendWithin(model.NewEnvelope(model.ServerPing, nil), s.opts.ProbeTimeout); err != nil {
				s.log.Info("liveness probe failed", zap.String("id", sess.ID()), zap.Error(err))
				if s.evict(sess, "probe failed") {
					evicted.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(evicted.Load())
}
