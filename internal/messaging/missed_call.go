package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// MissedCallSender sends the recovery message; dispatch.Dispatcher satisfies it.
type MissedCallSender interface {
	MissedCall(ctx context.Context, t dispatch.Target) (string, error)
}

// MissedCallRequest is posted by the clinic's call-tracking app.
type MissedCallRequest struct {
	DoctorPhone  string `json:"doctor_phone_number"`
	PatientPhone string `json:"patient_phone_number"`
}

// MissedCallHandler serves POST /api/missed-call.
type MissedCallHandler struct {
	doctors DoctorResolver
	sender  MissedCallSender
	logger  *logging.Logger
	now     func() time.Time
}

func NewMissedCallHandler(resolver DoctorResolver, sender MissedCallSender, logger *logging.Logger) *MissedCallHandler {
	if resolver == nil || sender == nil {
		panic("messaging: missed call handler requires resolver and sender")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MissedCallHandler{doctors: resolver, sender: sender, logger: logger, now: time.Now}
}

func (h *MissedCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req MissedCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid JSON body"})
		return
	}
	req.DoctorPhone = strings.TrimSpace(req.DoctorPhone)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)
	if req.DoctorPhone == "" || req.PatientPhone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "Both doctor_phone_number and patient_phone_number are required",
		})
		return
	}

	ctx := r.Context()
	doctor, err := h.doctors.GetByPhone(ctx, req.DoctorPhone)
	if errors.Is(err, doctors.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status":              "error",
			"message":             "Doctor not found in system",
			"doctor_phone_number": req.DoctorPhone,
		})
		return
	}
	if err != nil {
		h.logger.Error("missed call doctor lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "Internal server error"})
		return
	}

	kind, err := h.sender.MissedCall(ctx, dispatch.Target{Doctor: doctor, To: req.PatientPhone})
	if err != nil {
		h.logger.Error("missed call recovery failed", "error", err, "doctor_id", doctor.ID, "patient", logging.MaskPhone(req.PatientPhone))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": "Failed to send recovery message",
			"error":   err.Error(),
		})
		return
	}

	h.logger.Info("missed call recovery sent", "doctor_id", doctor.ID, "message_type", kind)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "Recovery message sent",
		"message_type": kind,
		"data": map[string]any{
			"doctor_name":          doctor.Name,
			"clinic_name":          doctor.DisplayClinicName(),
			"patient_phone_number": req.PatientPhone,
			"timestamp":            h.now().UTC().Format(time.RFC3339),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
