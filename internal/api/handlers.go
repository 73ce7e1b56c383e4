package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/command"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth reports the link state and every registered component check.
// Any failing check turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.twin.State()

	components := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"session":    s.twin.Session(),
		"link":       snapshot.Connection.Link,
		"components": components,
	})
}

// handleGetState returns the full snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.twin.State())
}

// handleGetSlice returns one slice with the snapshot version.
func (s *Server) handleGetSlice(w http.ResponseWriter, r *http.Request) {
	slice, err := state.ParseSlice(chi.URLParam(r, "slice"))
	if err != nil || slice == state.SliceAll {
		writeNotFound(w, "unknown state slice")
		return
	}

	snapshot := s.twin.State()
	value, err := snapshot.Slice(slice)
	if err != nil {
		writeNotFound(w, "unknown state slice")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slice":   slice.String(),
		"version": snapshot.Version,
		"value":   value,
	})
}

// handleListActions lists the accepted command names.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": command.Names()})
}

// handlePostAction queues a user command. The change is applied on the
// next tick, so the response is 202 Accepted; the new state arrives on the
// WebSocket stream.
func (s *Server) handlePostAction(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Name == "" {
		writeBadRequest(w, "command field is required")
		return
	}

	action, err := cmd.Action()
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnknownCommand):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "unknown command")
		default:
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		}
		return
	}

	if err := s.twin.Enqueue(action); err != nil {
		if errors.Is(err, twin.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeBusy, "action queue full, retry later")
			return
		}
		writeInternalError(w, "failed to queue action")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "queued",
		"command": cmd.Name,
		"kind":    action.Kind(),
	})
}

// handleListRules lists the registered rules.
func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.twin.Rules()})
}

// handleStats returns the twin counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.twin.Stats())
}
