package room

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Heartbeat runs a periodic sweep of every registered connection: a
// connection whose previous ping went unanswered is terminated, otherwise
// it is pinged and marked awaiting a pong. There is no retry; a failed
// ping closes the socket. pingRate paces outbound pings so a large
// connection set doesn't fire them all in the same instant.
func (m *Manager) Heartbeat(ctx context.Context, interval time.Duration, pingRate rate.Limit) {
	limiter := rate.NewLimiter(pingRate, 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, limiter)
		}
	}
}

// Pong marks conn as having answered its last ping, clearing the
// awaiting-pong flag the next sweep would otherwise act on.
func (m *Manager) Pong(conn Connection) {
	m.mu.Lock()
	cs, ok := m.conns[conn.ID()]
	m.mu.Unlock()
	if !ok {
		return
	}
	cs.mu.Lock()
	cs.awaitingPong = false
	cs.mu.Unlock()
}

func (m *Manager) sweep(ctx context.Context, limiter *rate.Limiter) {
	m.mu.Lock()
	conns := make([]*connState, 0, len(m.conns))
	for _, cs := range m.conns {
		conns = append(conns, cs)
	}
	m.mu.Unlock()

	for _, cs := range conns {
		cs.mu.Lock()
		unanswered := cs.awaitingPong
		cs.mu.Unlock()

		if unanswered {
			m.terminate(cs)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return // context cancelled mid-sweep
		}

		cs.mu.Lock()
		cs.awaitingPong = true
		cs.mu.Unlock()

		if err := cs.conn.Ping(); err != nil {
			m.terminate(cs)
		}
	}
}

func (m *Manager) terminate(cs *connState) {
	cs.conn.Close()
	m.Unregister(cs.conn)
}
