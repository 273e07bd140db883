package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/device"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams registry and execution events
type EventsHandler struct {
	subscriber device.EventSubscriber
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(subscriber device.EventSubscriber) *EventsHandler {
	return &EventsHandler{subscriber: subscriber}
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to device events
// @Description  Server-Sent Events stream of device_added, device_updated, device_removed,
// @Description  status_changed and execution_updated events
// @Tags         events
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(events)

	writeSSE(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
	})
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case evt, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c.Writer, evt.Type, evt)
			c.Writer.Flush()

		case <-ticker.C:
			writeSSE(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, data any) {
	payload, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+event+"\ndata: "+string(payload)+"\n\n")
}
