package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"page-token-service/domain/repository"
)

// Hub maintains SSE subscribers listening for token validity events. A
// subscriber may filter on one page or receive everything.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan repository.TokenEvent]string // channel -> page filter ("" = all)
}

func NewTokenHub() *Hub {
	return &Hub{subs: make(map[chan repository.TokenEvent]string)}
}

// Serve registers an SSE stream. Optional ?page_id= narrows events to one
// page.
func (h *Hub) Serve(c *gin.Context) {
	pageFilter := c.Query("page_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan repository.TokenEvent, 8)
	h.addSubscriber(ch, pageFilter)
	defer h.removeSubscriber(ch)

	// Initial comment to keep connection open
	c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: token_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(ch chan repository.TokenEvent, pageFilter string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = pageFilter
}

func (h *Hub) removeSubscriber(ch chan repository.TokenEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Broadcast fans a token event out to matching subscribers.
func (h *Hub) Broadcast(evt repository.TokenEvent) {
	h.mu.RLock()
	for ch, filter := range h.subs {
		if filter != "" && filter != evt.PageID {
			continue
		}
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
