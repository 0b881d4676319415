package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

type configStore interface {
	Get(ctx context.Context, doctorID string) (*Config, error)
	Set(ctx context.Context, cfg *Config) error
}

// Handler provides HTTP endpoints for a doctor's opening hours.
type Handler struct {
	store  configStore
	logger *logging.Logger
}

// NewHandler creates a new clinic config HTTP handler.
func NewHandler(store configStore, logger *logging.Logger) *Handler {
	if store == nil {
		panic("clinic: config store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns a chi router with clinic config routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{doctorID}/config", h.GetConfig)
	r.Put("/{doctorID}/config", h.UpdateConfig)
	return r
}

// GetConfig returns the clinic configuration for a doctor.
// GET /api/clinics/{doctorID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if doctorID == "" {
		http.Error(w, `{"error": "doctor_id required"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), doctorID)
	if errors.Is(err, ErrNotConfigured) {
		http.Error(w, `{"error": "clinic config not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get clinic config", "doctor_id", doctorID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, cfg)
}

// UpdateConfigRequest is the request body for updating clinic hours.
type UpdateConfigRequest struct {
	Timezone    string   `json:"timezone,omitempty"`
	OpeningTime string   `json:"opening_time,omitempty"`
	ClosingTime string   `json:"closing_time,omitempty"`
	Holidays    []string `json:"holidays,omitempty"`
}

// UpdateConfig creates or updates the clinic configuration for a doctor.
// PUT /api/clinics/{doctorID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if doctorID == "" {
		http.Error(w, `{"error": "doctor_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), doctorID)
	if errors.Is(err, ErrNotConfigured) {
		cfg, err = &Config{DoctorID: doctorID, OpeningTime: "09:00", ClosingTime: "18:00"}, nil
	}
	if err != nil {
		h.logger.Error("failed to get clinic config", "doctor_id", doctorID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	// Partial update.
	if req.Timezone != "" {
		cfg.Timezone = req.Timezone
	}
	if req.OpeningTime != "" {
		if _, ok := minutesOfDay(req.OpeningTime); !ok {
			http.Error(w, `{"error": "opening_time must be HH:MM"}`, http.StatusBadRequest)
			return
		}
		cfg.OpeningTime = req.OpeningTime
	}
	if req.ClosingTime != "" {
		if _, ok := minutesOfDay(req.ClosingTime); !ok {
			http.Error(w, `{"error": "closing_time must be HH:MM"}`, http.StatusBadRequest)
			return
		}
		cfg.ClosingTime = req.ClosingTime
	}
	if req.Holidays != nil {
		cfg.Holidays = req.Holidays
	}

	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save clinic config", "doctor_id", doctorID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic config updated", "doctor_id", doctorID)
	writeJSON(w, h.logger, cfg)
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode clinic config", "error", err)
	}
}
