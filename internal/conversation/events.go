// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"

	"github.com/echomed/drecho/internal/model"
)

// EventType identifies a store change.
type EventType string

const (
	EventMessage    EventType = "message"
	EventPartial    EventType = "partial"
	EventTyping     EventType = "typing"
	EventCleared    EventType = "cleared"
	EventVisibility EventType = "visibility"
)

// Event describes one change to the store. Only the field matching Type is
// meaningful.
type Event struct {
	Type    EventType
	Message model.Message
	Partial string
	Typing  bool
	Open    bool
}

const subscriberBuffer = 64

type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// publish delivers ev without blocking. A full subscriber misses the event.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of store changes and a cancel function that
// closes it. Delivery never blocks the store: a subscriber that falls more
// than 64 events behind misses events until it catches up, and should
// re-read Messages after a gap.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe()
}
