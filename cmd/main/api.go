package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/blatherlabs/blather/pkg/markov"
	"github.com/blatherlabs/blather/pkg/store"
)

// EngineAPI holds the dependencies for the engine's HTTP handlers. The model
// itself provides no locking, so the API enforces the single-writer /
// multi-reader discipline with an RWMutex: ingest, prune, and load take the
// write lock; generate, stats, and save take the read lock.
type EngineAPI struct {
	mu     sync.RWMutex
	model  *markov.Model
	synth  *markov.Synthesizer
	store  *store.Store
	config *GenerationConfig
	logger *slog.Logger
}

// NewEngineAPI creates a new instance of the EngineAPI.
func NewEngineAPI(model *markov.Model, st *store.Store, config *GenerationConfig, logger *slog.Logger) *EngineAPI {
	return &EngineAPI{
		model:  model,
		synth:  markov.NewSynthesizer(model, nil),
		store:  st,
		config: config,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (a *EngineAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/ingest", a.handleIngest)
	mux.HandleFunc("/api/generate", a.handleGenerate)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/prune", a.handlePrune)
	mux.HandleFunc("/api/models", a.handleListModels)
	mux.HandleFunc("/api/models/", a.handleModelByName)
}

type IngestRequest struct {
	Text   string   `json:"text"`
	Tokens []string `json:"tokens"`
}

type GenerateRequest struct {
	Keywords     []string `json:"keywords"`
	TargetLength *int     `json:"target_length"`
	MaxLength    *int     `json:"max_length"`
	Samples      *int     `json:"samples"`
	Alpha        *float64 `json:"alpha"`
	Beta         *float64 `json:"beta"`
}

type PruneRequest struct {
	MinFreq int `json:"min_freq"`
}

// handleIngest feeds one segment of text or a pre-tokenized sequence into the
// model.
func (a *EngineAPI) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Text == "" && len(req.Tokens) == 0 {
		respondWithError(w, http.StatusBadRequest, "Either text or tokens is required")
		return
	}

	a.mu.Lock()
	if req.Text != "" {
		a.model.AnalyzeText(req.Text)
	}
	if len(req.Tokens) > 0 {
		a.model.Analyze(req.Tokens)
	}
	stats := a.model.Stats()
	a.mu.Unlock()

	a.logger.Debug("Ingested segment",
		"text_length", len(req.Text),
		"tokens", len(req.Tokens),
		"nodes", stats.Nodes,
	)
	respondWithJSON(w, http.StatusOK, stats)
}

// handleGenerate runs best-of-N synthesis with the request's tunables layered
// over the configured defaults.
func (a *EngineAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if len(req.Keywords) == 0 {
		// Without keywords the beta bonus zeroes every score, so the call
		// could never produce output.
		respondWithError(w, http.StatusBadRequest, "At least one keyword is required")
		return
	}

	opts := []markov.GenerateOption{
		markov.WithKeywords(req.Keywords...),
		markov.WithTargetLength(orDefault(req.TargetLength, a.config.TargetLength)),
		markov.WithMaxLength(orDefault(req.MaxLength, a.config.MaxLength)),
		markov.WithSamples(orDefault(req.Samples, a.config.Samples)),
		markov.WithAlpha(orDefaultF(req.Alpha, a.config.Alpha)),
		markov.WithBeta(orDefaultF(req.Beta, a.config.Beta)),
	}

	a.mu.RLock()
	result := a.synth.Generate(opts...)
	a.mu.RUnlock()

	a.logger.Info("Generated sentence",
		"keywords", strings.Join(req.Keywords, ","),
		"score", result.Score,
		"text_length", len(result.Text),
	)
	respondWithJSON(w, http.StatusOK, result)
}

// handleStats returns aggregate counts for the live model.
func (a *EngineAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	a.mu.RLock()
	stats := a.model.Stats()
	a.mu.RUnlock()
	respondWithJSON(w, http.StatusOK, stats)
}

// handlePrune removes rare transitions from the live model.
func (a *EngineAPI) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.MinFreq < 1 {
		respondWithError(w, http.StatusBadRequest, "A positive min_freq is required")
		return
	}

	a.mu.Lock()
	removed := a.model.Prune(req.MinFreq)
	a.mu.Unlock()

	a.logger.Info("Model pruned", "min_freq", req.MinFreq, "links_removed", removed)
	respondWithJSON(w, http.StatusOK, map[string]int{"links_removed": removed})
}

// handleListModels lists the snapshots in the store.
func (a *EngineAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	models, err := a.store.List(r.Context())
	if err != nil {
		a.logger.Error("Failed to list models", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list models: %v", err))
		return
	}
	modelList := make([]store.ModelInfo, 0, len(models))
	for _, info := range models {
		modelList = append(modelList, info)
	}
	respondWithJSON(w, http.StatusOK, modelList)
}

// handleModelByName routes actions for a named snapshot: save, load, delete.
func (a *EngineAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}
	if len(parts) > 2 {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case r.Method == http.MethodPost && action == "save":
		a.mu.RLock()
		snap := a.model.Snapshot()
		a.mu.RUnlock()
		if err := a.store.Save(r.Context(), modelName, snap); err != nil {
			a.logger.Error("Failed to save model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save model: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"saved": modelName})

	case r.Method == http.MethodPost && action == "load":
		snap, err := a.store.Load(r.Context(), modelName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, fmt.Sprintf("Model '%s' not found", modelName))
				return
			}
			a.logger.Error("Failed to load model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load model: %v", err))
			return
		}
		a.mu.Lock()
		a.model = markov.FromSnapshot(snap, markov.NewDefaultTokenizer())
		a.synth = markov.NewSynthesizer(a.model, nil)
		a.mu.Unlock()
		respondWithJSON(w, http.StatusOK, map[string]string{"loaded": modelName})

	case r.Method == http.MethodDelete && action == "":
		if err := a.store.Delete(r.Context(), modelName); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, fmt.Sprintf("Model '%s' not found", modelName))
				return
			}
			a.logger.Error("Failed to delete model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete model: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"deleted": modelName})

	default:
		respondWithError(w, http.StatusNotFound, "Unknown model action")
	}
}

func orDefault(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func orDefaultF(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

// respondWithJSON writes a JSON payload with the given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError writes a JSON error message with the given status code.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
