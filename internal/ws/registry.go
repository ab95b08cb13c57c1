// Package ws implements the live-notification subsystem: a registry that maps
// each connected user to exactly one websocket channel and routes best-effort
// notifications to it.
//
// Delivery semantics are at-most-once and unacknowledged. A failed write marks
// the channel dead and evicts it (self-healing); an offline recipient simply
// misses the live event; the underlying message is still durably stored and
// appears on the next history fetch. There is no queueing, retry, or
// persistence of undelivered notifications.
//
// Concurrency: the identity map is guarded by a single mutex (registration and
// removal are mutually exclusive per identity slot), while the actual channel
// writes happen outside that lock under a per-entry write mutex, so one
// stalled peer cannot block other deliveries during a broadcast pass. Write
// deadlines give every push a bounded failure mode.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	// wsActive gauges the number of users with a live channel.
	wsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Current number of registered live websocket connections.",
		},
	)

	// wsDeliveries counts notification pushes by outcome.
	wsDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_deliveries_total",
			Help: "Total live notification deliveries by outcome.",
		},
		[]string{"outcome"}, // sent | dropped | failed
	)
)

func init() {
	prometheus.MustRegister(wsActive, wsDeliveries)
}

// Channel is the minimal transport contract the registry needs. The
// production implementation wraps a gorilla/websocket connection; tests use
// in-memory fakes.
type Channel interface {
	// WriteText sends one text frame. Implementations must bound the write
	// (deadline or equivalent) so a stalled peer fails instead of hanging.
	WriteText(data []byte) error
	// Close tears down the underlying transport.
	Close() error
}

// entry pairs a channel with its own write lock so concurrent sends to the
// same identity are serialized without holding the registry lock.
type entry struct {
	mu sync.Mutex
	ch Channel
}

func (e *entry) write(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch.WriteText(data)
}

// Registry tracks which user identities currently have an open live channel.
// It is owned by the process, injected into handlers, and torn down on
// shutdown via CloseAll. The zero value is not usable; construct with
// NewRegistry.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*entry)}
}

// Connect registers ch as the live endpoint for userID. An existing channel
// for the same identity is silently replaced; the old channel is closed
// best-effort without any handshake. Reconnects evict, they do not
// coordinate.
func (r *Registry) Connect(userID string, ch Channel) {
	r.mu.Lock()
	old, replaced := r.conns[userID]
	r.conns[userID] = &entry{ch: ch}
	r.mu.Unlock()

	if replaced {
		_ = old.ch.Close()
		log.Debug().Str("user_id", userID).Msg("live channel replaced")
	} else {
		wsActive.Inc()
	}
}

// Disconnect removes the entry for userID if present. Calling it twice, or
// for an identity that never connected, is a no-op.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	e, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if ok {
		_ = e.ch.Close()
		wsActive.Dec()
	}
}

// disconnectEntry removes userID only if it is still bound to e. A replaced
// connection's teardown must not evict its successor.
func (r *Registry) disconnectEntry(userID string, e *entry) {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if ok && cur == e {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		_ = e.ch.Close()
		wsActive.Dec()
	}
}

// DisconnectChannel removes userID only while ch is still its registered
// channel. Read-loop teardown uses this so a stale goroutine cannot evict a
// newer connection for the same identity.
func (r *Registry) DisconnectChannel(userID string, ch Channel) {
	r.mu.Lock()
	e, ok := r.conns[userID]
	if ok && e.ch == ch {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		_ = ch.Close()
		wsActive.Dec()
	}
}

// SendTo delivers payload (JSON-encoded) to userID's live channel, if any.
// Delivery failures are swallowed: the dead channel is evicted and the caller
// sees no error. An offline recipient drops the payload silently.
func (r *Registry) SendTo(userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("encode notification")
		return
	}

	r.mu.Lock()
	e, ok := r.conns[userID]
	r.mu.Unlock()
	if !ok {
		wsDeliveries.WithLabelValues("dropped").Inc()
		return
	}

	if err := e.write(data); err != nil {
		wsDeliveries.WithLabelValues("failed").Inc()
		log.Debug().Err(err).Str("user_id", userID).Msg("live delivery failed, evicting channel")
		r.disconnectEntry(userID, e)
		return
	}
	wsDeliveries.WithLabelValues("sent").Inc()
}

// Broadcast delivers payload to every registered identity. Failures are
// collected during the pass and the dead channels evicted after it, so one
// failure does not disturb iteration over the live set.
func (r *Registry) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("encode broadcast")
		return
	}

	r.mu.Lock()
	snapshot := make(map[string]*entry, len(r.conns))
	for id, e := range r.conns {
		snapshot[id] = e
	}
	r.mu.Unlock()

	type dead struct {
		id string
		e  *entry
	}
	var failed []dead
	for id, e := range snapshot {
		if err := e.write(data); err != nil {
			wsDeliveries.WithLabelValues("failed").Inc()
			failed = append(failed, dead{id: id, e: e})
			continue
		}
		wsDeliveries.WithLabelValues("sent").Inc()
	}

	for _, d := range failed {
		log.Debug().Str("user_id", d.id).Msg("broadcast delivery failed, evicting channel")
		r.disconnectEntry(d.id, d.e)
	}
}

// IsConnected reports whether userID currently has a live channel.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every live channel and empties the registry. Called once on
// shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range conns {
		_ = e.ch.Close()
		wsActive.Dec()
		log.Debug().Str("user_id", id).Msg("live channel closed on shutdown")
	}
}
