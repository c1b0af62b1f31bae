package realtime

import (
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
)

type subKey struct {
	conn *Conn
	id   string
}

// Hub — in-memory брокер подписок (/topic/...).
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[subKey]struct{}
	subs   map[subKey]string
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[subKey]struct{}),
		subs:   make(map[subKey]string),
	}
}

// Subscribe подписывает соединение на destination под идентификатором подписки id.
// Повторная подписка с тем же id переносит её на новый destination.
func (h *Hub) Subscribe(c *Conn, id, destination string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := subKey{conn: c, id: id}
	if prev, ok := h.subs[k]; ok {
		h.removeLocked(k, prev)
	}

	set, ok := h.topics[destination]
	if !ok {
		set = make(map[subKey]struct{})
		h.topics[destination] = set
	}
	set[k] = struct{}{}
	h.subs[k] = destination
}

// Unsubscribe снимает подписку; false, если её не было.
func (h *Hub) Unsubscribe(c *Conn, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := subKey{conn: c, id: id}
	dest, ok := h.subs[k]
	if !ok {
		return false
	}
	h.removeLocked(k, dest)

	return true
}

// Drop снимает все подписки соединения.
func (h *Hub) Drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for k, dest := range h.subs {
		if k.conn == c {
			h.removeLocked(k, dest)
		}
	}
}

func (h *Hub) removeLocked(k subKey, dest string) {
	delete(h.subs, k)

	if set, ok := h.topics[dest]; ok {
		delete(set, k)
		if len(set) == 0 {
			delete(h.topics, dest)
		}
	}
}

// Publish рассылает тело всем подписчикам destination.
// Возвращает число доставленных в очередь и отброшенных (переполнение) кадров.
func (h *Hub) Publish(destination, contentType string, body []byte) (delivered, dropped int) {
	h.mu.RLock()
	targets := make([]subKey, 0, len(h.topics[destination]))
	for k := range h.topics[destination] {
		targets = append(targets, k)
	}
	h.mu.RUnlock()

	msgID := uuid.NewString()
	for _, k := range targets {
		f := frame.New(frame.MESSAGE,
			frame.Destination, destination,
			frame.Subscription, k.id,
			frame.MessageId, msgID,
			frame.ContentType, contentType,
		)
		f.Body = body

		if k.conn.enqueue(f) {
			delivered++
		} else {
			dropped++
		}
	}

	return delivered, dropped
}

// Subscribers — число подписок на destination.
func (h *Hub) Subscribers(destination string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics[destination])
}
