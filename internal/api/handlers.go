package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/faultlinehq/faultline-engine/internal/history"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/normalize"
	"github.com/faultlinehq/faultline-engine/internal/utils"
)

// Investigator runs a single investigation to completion.
type Investigator interface {
	Investigate(ctx context.Context, req models.ParsedRequest) models.InvestigationReport
}

// Handler exposes the investigation engine over HTTP.
type Handler struct {
	engine  Investigator
	store   *history.Store
	miner   *history.Miner
	latency *utils.LatencyTracker
	logger  *slog.Logger
}

func NewHandler(engine Investigator, store *history.Store, miner *history.Miner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:  engine,
		store:   store,
		miner:   miner,
		latency: utils.NewLatencyTracker(512),
		logger:  logger,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/investigations", h.handleInvestigate).Methods(http.MethodPost)
	api.HandleFunc("/investigations", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/investigations/{id}", h.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/patterns", h.handlePatterns).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInvestigate normalises the raw request, runs the investigation
// synchronously, and archives the report. Input errors come back as a
// failed report with HTTP 200: the report status is the contract, not the
// HTTP code.
func (h *Handler) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	var raw normalize.RawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	parsed, err := normalize.Normalize(raw)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rep := h.engine.Investigate(r.Context(), parsed)
	h.store.Add(rep)
	h.latency.Observe(rep.Duration())
	h.logger.Info("investigation served",
		"run_id", rep.RunID, "status", rep.Status, "p95", h.latency.Percentile(95))
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := utils.ParseRFC3339(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since parameter: "+err.Error())
			return
		}
		since = parsed
	}
	respondJSON(w, http.StatusOK, map[string]any{"investigations": h.store.List(since)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rep, ok := h.store.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "no investigation with run_id "+id)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	patterns := h.miner.Mine()
	if patterns == nil {
		patterns = []models.FailurePattern{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
