package api

import (
	"bulkq/internal/domain"
	"bulkq/internal/media"
	"bulkq/internal/usecase"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type enqueueReq struct {
	Tasks []domain.Task `json:"tasks"`
	Start bool          `json:"start"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateTasks(req.Tasks); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if err := s.deps.Quota.Reserve(ctx, userID, len(req.Tasks)); err != nil {
		switch {
		case errors.Is(err, usecase.ErrBatchTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err)
		case errors.Is(err, usecase.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, err)
		default:
			log.Ctx(ctx).Error().Err(err).Msg("quota check failed")
			writeError(w, http.StatusServiceUnavailable, errors.New("quota check unavailable"))
		}
		return
	}

	if err := s.deps.Store.AddToQueue(userID, req.Tasks, s.deps.Processor); err != nil {
		if rerr := s.deps.Quota.Release(ctx, userID, len(req.Tasks)); rerr != nil {
			log.Ctx(ctx).Warn().Err(rerr).Msg("quota release failed")
		}
		if errors.Is(err, usecase.ErrQueueBusy) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	log.Ctx(ctx).Info().Str("user", userID).Int("tasks", len(req.Tasks)).Bool("start", req.Start).Msg("tasks enqueued")
	if req.Start {
		s.start(userID)
	}

	snap, _ := s.deps.Store.GetQueueStatus(userID)
	writeJSON(w, http.StatusAccepted, snap)
}

func validateTasks(tasks []domain.Task) error {
	if len(tasks) == 0 {
		return errors.New("tasks must not be empty")
	}
	for i, t := range tasks {
		if !media.Supports(t.Type) {
			return fmt.Errorf("task %d: unsupported type %q", i, t.Type)
		}
		if t.URL() == "" {
			return fmt.Errorf("task %d: payload.url is required", i)
		}
	}
	return nil
}

func (s *Server) startQueue(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snap, ok := s.deps.Store.GetQueueStatus(userID)
	if !ok {
		writeError(w, http.StatusNotFound, usecase.ErrQueueNotFound)
		return
	}
	if active(snap.Status) {
		writeError(w, http.StatusConflict, usecase.ErrAlreadyRunning)
		return
	}

	s.start(userID)
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Store.GetQueueStatus(chi.URLParam(r, "userID"))
	if !ok {
		writeError(w, http.StatusNotFound, usecase.ErrQueueNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) pauseQueue(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.deps.Store.PauseQueue)
}

func (s *Server) resumeQueue(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.deps.Store.ResumeQueue)
}

func (s *Server) cancelQueue(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.deps.Store.CancelQueue)
}

// control applies op and maps a false result to 404 for a missing queue and
// 409 for one in the wrong state.
func (s *Server) control(w http.ResponseWriter, r *http.Request, op func(userID string) bool) {
	userID := chi.URLParam(r, "userID")
	if op(userID) {
		writeJSON(w, http.StatusOK, okResp{OK: true})
		return
	}
	if _, ok := s.deps.Store.GetQueueStatus(userID); !ok {
		writeJSON(w, http.StatusNotFound, okResp{OK: false})
		return
	}
	writeJSON(w, http.StatusConflict, okResp{OK: false})
}

func (s *Server) clearQueue(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Store.ClearQueue(chi.URLParam(r, "userID")) {
		writeError(w, http.StatusNotFound, usecase.ErrQueueNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
