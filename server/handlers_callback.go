package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/classof27/rollcall/flow"
	"github.com/classof27/rollcall/telemetry"
)

// callbackRequest is what the web frontend posts after Schoology redirects
// the user back with their exchange token.
type callbackRequest struct {
	Token string `json:"token"`
}

type classPayload struct {
	Period  int    `json:"period"`
	Name    string `json:"name"`
	Teacher string `json:"teacher"`
}

// HandleCallback completes a link flow. Responses are always HTTP 200 with
// either a classes list or an error payload; the frontend renders the error
// string verbatim, so the strings here are part of the interface.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, map[string]string{"error": "Invalid URL!"})
		return
	}

	ctx := r.Context()
	entries, err := h.flow.Complete(ctx, req.Token)
	if err != nil {
		log := telemetry.LoggerWithCorr(ctx)
		switch {
		case errors.Is(err, flow.ErrTokenNotFound):
			writeJSON(w, map[string]string{"error": "Invalid URL!"})
		case errors.Is(err, flow.ErrNoSchoologyUser):
			writeJSON(w, map[string]string{"error": "Invalid Schoology state!"})
		case errors.Is(err, flow.ErrCohortMismatch):
			writeJSON(w, map[string]string{"error": "Not in " + h.cfg.CohortName + "!"})
		default:
			log.Error("link flow failed", slog.Any("err", err))
			writeJSON(w, map[string]string{"error": "Something went wrong!"})
		}
		return
	}

	classes := make([]classPayload, len(entries))
	for i, e := range entries {
		classes[i] = classPayload{Period: e.Period, Name: e.Course, Teacher: e.Teacher}
	}
	writeJSON(w, map[string][]classPayload{"classes": classes})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
