// Package ws carries live chat fan-out. Delivery is at-most-once and best
// effort: there is no acknowledgment, no retry and no buffering beyond each
// session's send queue. Clients that miss messages catch up via history.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/metrics"
)

// Frame is the JSON envelope on the websocket, both directions. Inbound
// frames carry subscribe/unsubscribe requests; outbound frames carry
// broadcast messages.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameMessage     = "message"
	frameError       = "error"
)

// Hub maintains the set of connected sessions and the topic subscriptions,
// and fans published payloads out to them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	topics   map[string]map[*Session]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		topics:   make(map[string]map[*Session]struct{}),
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
	metrics.SubscribersConnected.Inc()
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

// dropLocked removes a session from the hub and all its topics. Callers
// hold h.mu.
func (h *Hub) dropLocked(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	close(s.send)
	for topic, subs := range h.topics {
		if _, ok := subs[s]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	metrics.SubscribersConnected.Dec()
}

func (h *Hub) subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Session]struct{})
	}
	h.topics[topic][s] = struct{}{}
}

func (h *Hub) unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish delivers the payload to every session currently subscribed to
// the topic. Sessions whose send queue is full are dropped; they are
// expected to reconnect and backfill from history.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("broadcast payload not serializable")
		return
	}
	frame, err := json.Marshal(Frame{Type: frameMessage, Topic: topic, Payload: data})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("broadcast frame not serializable")
		return
	}

	var slow []*Session
	h.mu.RLock()
	for s := range h.topics[topic] {
		select {
		case s.send <- frame:
			metrics.BroadcastDelivered.Inc()
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, s := range slow {
		metrics.BroadcastDropped.Inc()
		h.dropLocked(s)
	}
	h.mu.Unlock()
}
