package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kplays-api/internal/events"
	"kplays-api/internal/middleware"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// keepAliveInterval keeps idle event streams open through proxies.
var keepAliveInterval = 25 * time.Second

// streamEvents relays a broker topic to the client as server-sent events
// until the client goes away or the stream is closed.
func streamEvents(w http.ResponseWriter, r *http.Request, broker events.Broker, topic string, closing <-chan struct{}) {
	if broker == nil {
		response.Error(w, apierror.ServiceUnavailable("Live updates are not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, apierror.InternalError("Streaming unsupported"))
		return
	}

	ctx := r.Context()
	sub, err := broker.Subscribe(ctx, topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: 5000\n: subscribed to %s\n\n", topic)
	flusher.Flush()

	log := middleware.Logger(ctx).With("topic", topic)
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closing:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Warn("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
