package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// sendBuffer is the per-connection outbound queue. A subscriber that cannot
// drain this many events is considered dead and dropped.
const sendBuffer = 32

// writeTimeout bounds a single frame write to a subscriber.
const writeTimeout = 5 * time.Second

// Envelope is the wire format in both directions. Clients send subscribe,
// unsubscribe, and ping; the hub sends update, subscribed, unsubscribed,
// pong, and error.
type Envelope struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Resource  string          `json:"resource,omitempty"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type session struct {
	id        string
	principal string
	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	topics    map[string]bool
	mu        sync.Mutex
	started   time.Time
}

// shutdown signals the write loop to stop. send stays open so a read loop
// still in flight can never hit a closed channel.
func (s *session) shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) subscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = true
}

func (s *session) unsubscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
}

func (s *session) subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[topic]
}

func (s *session) topicList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	return topics
}

// Hub fans domain events out to websocket subscribers. Subscriptions are
// keyed by resource and id, so a dashboard watching one release is not
// woken for every other release's telemetry.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	store    *SessionStore
	logger   zerolog.Logger
}

// New creates a hub. store may be nil; snapshots are then kept in memory only.
func New(store *SessionStore, logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		store:    store,
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

func topicKey(resource, id string) string {
	return resource + ":" + id
}

// Broadcast delivers an event to every session subscribed to resource/id and
// returns the number of deliveries. Sessions whose send queue is full are
// closed and pruned rather than allowed to stall the publisher.
func (h *Hub) Broadcast(eventType, resource, id string, data any) int {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", eventType).Msg("marshal broadcast payload")
		return 0
	}
	env := Envelope{
		Type:     "update",
		Event:    eventType,
		Resource: resource,
		ID:       id,
		Data:     payload,
	}
	topic := topicKey(resource, id)

	h.mu.RLock()
	var dead []*session
	delivered := 0
	for _, sess := range h.sessions {
		if !sess.subscribed(topic) {
			continue
		}
		select {
		case sess.send <- env:
			delivered++
		default:
			dead = append(dead, sess)
		}
	}
	h.mu.RUnlock()

	for _, sess := range dead {
		h.logger.Warn().Str("session_id", sess.id).Msg("dropping slow subscriber")
		h.remove(sess)
	}
	return delivered
}

// Snapshots returns the persisted session snapshots, including ones written
// by other API instances sharing the store. Returns nil when no store is
// configured.
func (h *Hub) Snapshots(ctx context.Context) ([]Snapshot, error) {
	if h.store == nil {
		return nil, nil
	}
	return h.store.List(ctx)
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(sess *session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()
	h.snapshot(sess)
}

func (h *Hub) remove(sess *session) {
	h.mu.Lock()
	if _, ok := h.sessions[sess.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sess.id)
	h.mu.Unlock()

	sess.shutdown()
	if h.store != nil {
		if err := h.store.Delete(context.Background(), sess.id); err != nil {
			h.logger.Warn().Err(err).Str("session_id", sess.id).Msg("delete session snapshot")
		}
	}
}

// snapshot persists the session's current subscriptions so an observer can
// inspect connected clients across API restarts.
func (h *Hub) snapshot(sess *session) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(context.Background(), snapshotOf(sess)); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sess.id).Msg("save session snapshot")
	}
}

func snapshotOf(sess *session) Snapshot {
	return Snapshot{
		ConnID:        sess.id,
		Principal:     sess.principal,
		Subscriptions: sess.topicList(),
		ConnectedAt:   sess.started,
	}
}

// Serve upgrades the request to a websocket and runs the session until the
// client disconnects. principal identifies the authenticated owner and is
// carried into the session snapshot.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, principal string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin differs from Host when proxied through a dashboard.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := &session{
		id:        platform.NewID(),
		principal: principal,
		send:      make(chan Envelope, sendBuffer),
		done:      make(chan struct{}),
		topics:    make(map[string]bool),
		started:   time.Now(),
	}
	h.add(sess)
	defer h.remove(sess)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, ws, sess)
	h.readLoop(ctx, ws, sess)
	ws.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) writeLoop(ctx context.Context, ws *websocket.Conn, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.done:
			ws.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return
		case env := <-sess.send:
			if err := h.writeEnvelope(ctx, ws, env); err != nil {
				return
			}
		}
	}
}

func (h *Hub) writeEnvelope(ctx context.Context, ws *websocket.Conn, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, sess *session) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.handleMessage(sess, data)
	}
}

// handleMessage applies one client control message. Malformed input gets an
// error envelope back instead of tearing the connection down.
func (h *Hub) handleMessage(sess *session, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reply(sess, Envelope{Type: "error", Error: "malformed message"})
		return
	}

	switch env.Type {
	case "subscribe":
		if env.Resource == "" || env.ID == "" {
			h.reply(sess, Envelope{Type: "error", Error: "subscribe requires resource and id"})
			return
		}
		sess.subscribe(topicKey(env.Resource, env.ID))
		h.snapshot(sess)
		h.reply(sess, Envelope{Type: "subscribed", Resource: env.Resource, ID: env.ID})
	case "unsubscribe":
		sess.unsubscribe(topicKey(env.Resource, env.ID))
		h.snapshot(sess)
		h.reply(sess, Envelope{Type: "unsubscribed", Resource: env.Resource, ID: env.ID})
	case "ping":
		h.reply(sess, Envelope{Type: "pong", Timestamp: time.Now().Unix()})
	default:
		h.reply(sess, Envelope{Type: "error", Error: "unknown message type " + env.Type})
	}
}

func (h *Hub) reply(sess *session, env Envelope) {
	select {
	case sess.send <- env:
	default:
	}
}
