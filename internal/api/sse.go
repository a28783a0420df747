package api

import (
	"bulkq/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 64

// events streams the user's progress as Server-Sent Events. The current
// snapshot, if any, is sent first.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ch := make(chan domain.ProgressEvent, eventBuffer)
	unsubscribe := s.deps.Bus.Subscribe(userID, func(_ context.Context, ev domain.ProgressEvent) {
		select {
		case ch <- ev:
		default:
			log.Ctx(ctx).Warn().Str("user", userID).Msg("slow event stream, dropping progress event")
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if snap, ok := s.deps.Store.GetQueueStatus(userID); ok {
		if err := writeEvent(w, "snapshot", snap); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := writeEvent(w, ev.Type, ev); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("event stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
