package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bgp-cmdb/pkg/model"
)

const writeWait = 5 * time.Second

// EventHub fans committed changes out to websocket subscribers.
type EventHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[*websocket.Conn]*subscriber
}

type subscriber struct {
	kind model.Kind // empty: every kind
	wmu  sync.Mutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: map[*websocket.Conn]*subscriber{},
	}
}

// HandleEvents upgrades the request and streams journal entries; ?kind=bgp_session
// restricts the stream to one kind.
func (h *EventHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("events upgrade failed")
		return
	}
	h.mu.Lock()
	h.subs[c] = &subscriber{kind: model.Kind(r.URL.Query().Get("kind"))}
	h.mu.Unlock()
	logrus.WithField("remote", r.RemoteAddr).Debug("events subscriber connected")
	go h.readLoop(c)
}

// Subscribers returns the number of connected subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends e to every matching subscriber. Subscribers that cannot keep up are dropped.
func (h *EventHub) Publish(e model.JournalEntry) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]*subscriber, len(h.subs))
	for c, s := range h.subs {
		if s.kind == "" || s.kind == e.Kind {
			targets[c] = s
		}
	}
	h.mu.RUnlock()
	for c, s := range targets {
		s.wmu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.WriteJSON(e)
		s.wmu.Unlock()
		if err != nil {
			go h.closeSub(c)
		}
	}
}

// readLoop discards client messages and notices when the client goes away.
func (h *EventHub) readLoop(c *websocket.Conn) {
	defer h.closeSub(c)
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (h *EventHub) closeSub(c *websocket.Conn) {
	_ = c.Close()
	h.mu.Lock()
	delete(h.subs, c)
	h.mu.Unlock()
}
