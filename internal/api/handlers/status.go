package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/realjkeee/zenbot/internal/search"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// StatusSource is the read-only view of a running search
type StatusSource interface {
	Status() search.Status
	Members(strategy string) ([]search.MemberView, bool)
	LastSummary() (*search.GenerationSummary, bool)
}

// StatusHandler serves the generation loop state
// ⭐ SSOT: 상태 API 핸들러는 이 구조체에서만
type StatusHandler struct {
	source StatusSource
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(source StatusSource, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		source: source,
		logger: log,
	}
}

// Health returns the loop position shown on /health
func (h *StatusHandler) Health() map[string]interface{} {
	st := h.source.Status()
	return map[string]interface{}{
		"run_id":     st.RunID,
		"state":      st.State,
		"generation": st.Generation,
	}
}

// GetPopulations returns the loop state and every population's best member
// GET /api/populations
func (h *StatusHandler) GetPopulations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.source.Status())
}

// GetPopulation returns one strategy's members, best first
// GET /api/populations/{strategy}
func (h *StatusHandler) GetPopulation(w http.ResponseWriter, r *http.Request) {
	strategy := mux.Vars(r)["strategy"]

	members, ok := h.source.Members(strategy)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown strategy: "+strategy)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": strategy,
		"members":  members,
	})
}

// GetLatestGeneration returns the last finished generation's summary
// GET /api/generations/latest
func (h *StatusHandler) GetLatestGeneration(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.source.LastSummary()
	if !ok {
		respondError(w, http.StatusNotFound, "No generation finished yet")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
