package handlers

import (
	"io"
	"net/http"
	"sync"
	"time"

	"opdportal/models"
	"opdportal/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LiveEvent is one server-sent event of the live stream.
type LiveEvent struct {
	Name string
	Data any
}

// LiveHub fans store changes out to every connected live stream. Slow
// subscribers miss events instead of blocking the stores.
type LiveHub struct {
	mu     sync.Mutex
	subs   map[chan LiveEvent]struct{}
	buffer int
}

func NewLiveHub(buffer int) *LiveHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &LiveHub{subs: make(map[chan LiveEvent]struct{}), buffer: buffer}
}

func (h *LiveHub) subscribe() chan LiveEvent {
	ch := make(chan LiveEvent, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *LiveHub) unsubscribe(ch chan LiveEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *LiveHub) Publish(ev LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishCrowd is an OnChange listener for the crowd store.
func (h *LiveHub) PublishCrowd(entry models.CrowdEntry) {
	h.Publish(LiveEvent{Name: "crowd", Data: entry})
}

// PublishCrowdReset tells streams that every crowd entry was cleared.
func (h *LiveHub) PublishCrowdReset() {
	h.Publish(LiveEvent{Name: "crowd-reset", Data: gin.H{}})
}

// PublishNotifications is an OnChange listener for the notification store.
func (h *LiveHub) PublishNotifications(items []models.Notification) {
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	h.Publish(LiveEvent{Name: "notifications", Data: gin.H{"notifications": items, "unread": unread}})
}

// PublishWizard is an OnChange listener for the booking wizard.
func (h *LiveHub) PublishWizard(state booking.State) {
	h.Publish(LiveEvent{Name: "wizard", Data: state})
}

// StreamHandler serves GET /api/live as server-sent events until the client
// goes away.
func (h *LiveHub) StreamHandler(c *gin.Context) {
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	logger := getLogger(c)
	logger.Debug("Live stream opened")
	defer logger.Debug("Live stream closed")

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev := <-ch:
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
	if err := c.Request.Context().Err(); err != nil {
		logger.Debug("Live stream client gone", zap.Error(err))
	}
}
