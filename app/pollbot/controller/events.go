package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/groupchat/pollbot/pkg/gateway"
	"go.uber.org/zap"
)

// HandleEvent accepts one callback from the messaging backend. The event is
// handled asynchronously; 202 does not mean it succeeded.
func (c *Controller) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var evt gateway.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}
	if err := evt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.App.Inbox.Enqueue(r.Context(), evt); err != nil {
		c.App.Logger.Error("Failed to enqueue event",
			zap.String("event_id", evt.ID),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
