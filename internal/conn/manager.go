// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package conn owns the push-channel lifecycle: a single logical websocket
// connection to the upstream aggregator, exposed as a status stream plus a
// stream of decoded event batches.
//
// State machine: connecting → open → closed → connecting (after a fixed
// delay) → open, with transport errors inserting an error state before
// closed. There is no terminal state while the process is alive; only an
// explicit Disconnect suppresses the automatic reconnect.
//
// The reconnect delay is fixed rather than exponential. This bounds recovery
// latency at the cost of steady reconnect load on a failing upstream; see
// ReconnectDelay.
package conn

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/metrics"
	"github.com/osiris-osint/osiris/internal/models"
)

// ReconnectDelay is the fixed wait between a close and the next connection
// attempt.
const ReconnectDelay = 5 * time.Second

const (
	handshakeTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
	maxMessageSize   = 4 * 1024 * 1024 // 4 MB; snapshot-sized push bursts fit
)

// StatusListener observes channel status transitions. Listeners are invoked
// synchronously on each transition, in registration order.
type StatusListener func(models.ChannelStatus)

// BatchListener receives each successfully decoded event batch.
type BatchListener func([]models.Event)

// Subscription identifies a registered listener for removal.
type Subscription struct {
	id uuid.UUID
}

// wsConn is the subset of *websocket.Conn the manager uses. Narrowed to an
// interface so tests can script the transport.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	SetReadLimit(int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// DialFunc opens the underlying websocket connection.
type DialFunc func(ctx context.Context, url string) (wsConn, error)

func gorillaDial(ctx context.Context, url string) (wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config holds the manager's tunables.
type Config struct {
	// URL is the upstream push-channel endpoint (ws:// or wss://).
	URL string

	// ReconnectDelay overrides the fixed reconnect wait. Zero means
	// ReconnectDelay. Tests shorten this.
	ReconnectDelay time.Duration
}

// Manager maintains the push connection and its observable health record.
type Manager struct {
	cfg  Config
	dial DialFunc

	mu          sync.Mutex
	conn        wsConn
	status      models.ChannelStatus
	statusSubs  map[uuid.UUID]StatusListener
	statusOrder []uuid.UUID
	batchSubs   map[uuid.UUID]BatchListener
	batchOrder  []uuid.UUID
	reconnect   *time.Timer
	torndown    bool
	dialing     bool
	generation  uint64
	health      models.ChannelHealth

	// warnLimiter throttles malformed-frame warnings so a broken upstream
	// cannot flood the log.
	warnLimiter *rate.Limiter
}

// NewManager creates a manager for the given endpoint. The connection is not
// opened until Connect is called.
func NewManager(cfg Config) *Manager {
	return newManager(cfg, gorillaDial)
}

func newManager(cfg Config, dial DialFunc) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = ReconnectDelay
	}
	return &Manager{
		cfg:         cfg,
		dial:        dial,
		status:      models.StatusConnecting,
		statusSubs:  make(map[uuid.UUID]StatusListener),
		batchSubs:   make(map[uuid.UUID]BatchListener),
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		health: models.ChannelHealth{
			Channel: "push",
			Status:  models.StatusConnecting,
		},
	}
}

// Status returns the current channel status.
func (m *Manager) Status() models.ChannelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Health returns a copy of the channel health record.
func (m *Manager) Health() models.ChannelHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// SubscribeStatus registers a status listener and returns its handle.
func (m *Manager) SubscribeStatus(fn StatusListener) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.statusSubs[id] = fn
	m.statusOrder = append(m.statusOrder, id)
	return Subscription{id: id}
}

// SubscribeBatches registers a batch listener and returns its handle.
func (m *Manager) SubscribeBatches(fn BatchListener) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.batchSubs[id] = fn
	m.batchOrder = append(m.batchOrder, id)
	return Subscription{id: id}
}

// Unsubscribe removes a listener by handle. Removing an already-removed or
// unknown handle is a no-op, so teardown paths can call it unconditionally.
func (m *Manager) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statusSubs, sub.id)
	delete(m.batchSubs, sub.id)
	m.statusOrder = removeID(m.statusOrder, sub.id)
	m.batchOrder = removeID(m.batchOrder, sub.id)
}

func removeID(order []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// Connect opens the push connection. No-op if the channel is already open or
// a connection attempt is in flight. An explicit Connect after Disconnect
// re-arms the channel (supervisor restarts rely on this); reconnect timers go
// through connectInternal, which never overrides a teardown.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	m.torndown = false
	m.mu.Unlock()
	m.connectInternal(ctx)
}

func (m *Manager) connectInternal(ctx context.Context) {
	m.mu.Lock()
	if m.torndown || m.conn != nil || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	m.setStatus(models.StatusConnecting)

	c, err := m.dial(ctx, m.cfg.URL)
	m.mu.Lock()
	m.dialing = false
	m.mu.Unlock()
	if err != nil {
		logging.Warn().Err(err).Str("url", m.cfg.URL).Msg("push channel dial failed")
		m.recordError(err)
		metrics.PushReconnects.Inc()
		m.setStatus(models.StatusError)
		m.closeAndScheduleReconnect(ctx, gen, nil)
		return
	}

	m.mu.Lock()
	if m.torndown {
		m.mu.Unlock()
		_ = c.Close()
		return
	}
	m.conn = c
	m.mu.Unlock()

	m.setStatus(models.StatusOpen)
	logging.Info().Str("url", m.cfg.URL).Msg("push channel open")

	go m.readLoop(ctx, gen, c)
}

// Disconnect cancels any pending reconnect and closes the connection. This is
// the only path that suppresses auto-reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.torndown = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	c := m.conn
	m.conn = nil
	alreadyClosed := m.status == models.StatusClosed
	m.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	if !alreadyClosed {
		m.setStatus(models.StatusClosed)
	}
	logging.Info().Msg("push channel torn down")
}

// readLoop consumes frames until the connection drops, then runs the
// reconnect policy. gen guards against a stale loop acting after a newer
// connection has been established.
func (m *Manager) readLoop(ctx context.Context, gen uint64, c wsConn) {
	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stale := m.generation != gen || m.torndown
			m.mu.Unlock()
			if stale {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn().Err(err).Msg("push channel transport error")
				m.recordError(err)
				m.setStatus(models.StatusError)
			}
			metrics.PushReconnects.Inc()
			m.closeAndScheduleReconnect(ctx, gen, c)
			return
		}
		m.handleMessage(payload)
		_ = c.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// handleMessage decodes one frame as an event batch and fans it out.
// Malformed payloads are dropped without affecting connection state.
func (m *Manager) handleMessage(payload []byte) {
	events, malformed, err := models.DecodeBatch(payload)
	if err != nil {
		if m.warnLimiter.Allow() {
			logging.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping malformed push message")
		}
		metrics.PushMalformedMessages.Inc()
		return
	}
	if malformed > 0 {
		metrics.PushMalformedRecords.Add(float64(malformed))
	}

	m.mu.Lock()
	m.health.Messages++
	m.health.Events += uint64(len(events))
	m.health.LastSuccess = time.Now().UTC()
	listeners := make([]BatchListener, 0, len(m.batchOrder))
	for _, id := range m.batchOrder {
		listeners = append(listeners, m.batchSubs[id])
	}
	m.mu.Unlock()

	metrics.PushMessages.Inc()
	metrics.PushEvents.Add(float64(len(events)))

	for _, fn := range listeners {
		fn(events)
	}
}

// closeAndScheduleReconnect transitions to closed and arms the fixed-delay
// reconnect timer, unless an explicit teardown happened in the meantime.
func (m *Manager) closeAndScheduleReconnect(ctx context.Context, gen uint64, c wsConn) {
	if c != nil {
		_ = c.Close()
	}

	m.mu.Lock()
	if m.generation == gen && m.conn != nil {
		m.conn = nil
	}
	torndown := m.torndown
	m.mu.Unlock()

	m.setStatus(models.StatusClosed)
	if torndown {
		return
	}

	m.mu.Lock()
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		torndown := m.torndown
		m.reconnect = nil
		m.mu.Unlock()
		if torndown || ctx.Err() != nil {
			return
		}
		m.connectInternal(ctx)
	})
	m.mu.Unlock()

	logging.Info().Dur("delay", m.cfg.ReconnectDelay).Msg("push channel reconnect scheduled")
}

// setStatus records a transition and invokes status listeners synchronously,
// outside the lock, in registration order.
func (m *Manager) setStatus(st models.ChannelStatus) {
	m.mu.Lock()
	if m.status == st {
		m.mu.Unlock()
		return
	}
	m.status = st
	m.health.Status = st
	listeners := make([]StatusListener, 0, len(m.statusOrder))
	for _, id := range m.statusOrder {
		listeners = append(listeners, m.statusSubs[id])
	}
	m.mu.Unlock()

	metrics.SetPushStatus(string(st))

	for _, fn := range listeners {
		fn(st)
	}
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.health.LastError = err.Error()
	m.health.LastErrorAt = time.Now().UTC()
	m.mu.Unlock()
}
