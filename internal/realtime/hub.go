// Package realtime implements the channel-group layer: sockets join named
// groups and every publish to a group is copied to each member's send buffer.
package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/metrics"
)

// member is anything that can take an encoded message without blocking.
type member interface {
	trySend(payload []byte) bool
}

// Hub maps group names to their members. Many-to-many: a session joins a
// few fixed groups, a group fans out to many sessions.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[member]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[member]struct{})}
}

// Join adds m to group.
func (h *Hub) Join(group string, m member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[member]struct{})
		h.groups[group] = members
	}
	members[m] = struct{}{}
}

// Leave removes m from the given groups. Once Leave returns no publish
// references m any more.
func (h *Hub) Leave(m member, groups ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range groups {
		members := h.groups[group]
		delete(members, m)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Broadcast copies payload to every member of group and returns how many
// accepted it. Members with a full buffer miss the message.
func (h *Hub) Broadcast(group string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for m := range h.groups[group] {
		if m.trySend(payload) {
			delivered++
			continue
		}
		metrics.EventsDropped.WithLabelValues("session").Inc()
	}
	return delivered
}

// Publish implements broadcast.Publisher for in-process delivery.
func (h *Hub) Publish(_ context.Context, group string, ev broadcast.Event) error {
	payload, err := broadcast.Encode(ev)
	if err != nil {
		return err
	}
	n := h.Broadcast(group, payload)
	log.Debug().Str("group", group).Str("kind", string(ev.Kind())).Int("sessions", n).Msg("group send")
	return nil
}

// Size returns the number of members in group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
