// Package livechat is the doctor dashboard API for reading a patient's
// WhatsApp thread and replying by hand.
package livechat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const defaultHistoryLimit = 50

// MessageStore reads and writes the chat log.
type MessageStore interface {
	History(ctx context.Context, doctorID, phone string, limit int) ([]chatlog.Message, error)
	Log(ctx context.Context, msg chatlog.Message) (chatlog.Message, error)
}

type PatientStore interface {
	Get(ctx context.Context, phone string) (*patients.Patient, error)
	SetBotPaused(ctx context.Context, phone string, paused bool) error
}

type DoctorLookup interface {
	GetByID(ctx context.Context, id string) (*doctors.Doctor, error)
}

// TextSender is the one gateway call a manual reply needs.
type TextSender interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, to, body string) (*whatsapp.SendResponse, error)
}

// Handler serves /api/livechat/{doctorID}/...
type Handler struct {
	messages MessageStore
	patients PatientStore
	doctors  DoctorLookup
	sender   TextSender
	hub      *Hub
	logger   *logging.Logger
}

func NewHandler(messages MessageStore, patientStore PatientStore, doctorLookup DoctorLookup, sender TextSender, hub *Hub, logger *logging.Logger) *Handler {
	if messages == nil || patientStore == nil || doctorLookup == nil || sender == nil {
		panic("livechat: messages, patients, doctors and sender are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		messages: messages,
		patients: patientStore,
		doctors:  doctorLookup,
		sender:   sender,
		hub:      hub,
		logger:   logger,
	}
}

// History returns the thread, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	phone := doctors.NormalizePhone(chi.URLParam(r, "phone"))
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.messages.History(r.Context(), doctorID, phone, limit)
	if err != nil {
		h.logger.Error("livechat: history failed", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []chatlog.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Send pauses the bot for the patient and delivers the doctor's text.
// Gateway failures come back as 502 with the structured send error.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doctorID := chi.URLParam(r, "doctorID")

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if strings.TrimSpace(req.Phone) == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: phone, message")
		return
	}

	patient, ok := h.ownedPatient(w, r, doctorID, req.Phone)
	if !ok {
		return
	}
	doctor, err := h.doctors.GetByID(ctx, doctorID)
	if err != nil {
		h.lookupFailed(w, "doctor", err, doctorID)
		return
	}

	if !patient.BotPaused {
		if err := h.patients.SetBotPaused(ctx, patient.PhoneNumber, true); err != nil {
			h.logger.Warn("livechat: auto-pause failed", "error", err, "patient_id", patient.ID)
		}
	}

	resp, err := h.sender.SendText(ctx, dispatch.Credentials(doctor), patient.PhoneNumber, req.Message)
	if err != nil {
		h.logger.Warn("livechat: manual send failed", "error", err, "doctor_id", doctorID, "patient_id", patient.ID)
		if se, ok := whatsapp.AsSendError(err); ok {
			writeJSON(w, http.StatusBadGateway, se)
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "Failed to send WhatsApp message. Please try again.",
			"canRetry": true,
		})
		return
	}

	if _, err := h.messages.Log(ctx, chatlog.Message{
		DoctorID:          doctorID,
		PatientID:         patient.ID,
		PhoneNumber:       patient.PhoneNumber,
		Direction:         chatlog.DirectionOutgoing,
		Body:              req.Message,
		WhatsAppMessageID: resp.MessageID(),
		SentByDoctor:      true,
	}); err != nil {
		h.logger.Warn("livechat: failed to log manual message", "error", err, "patient_id", patient.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Message sent successfully",
		"messageId": resp.MessageID(),
		"botPaused": true,
	})
}

type toggleRequest struct {
	Phone  string `json:"phone"`
	Paused *bool  `json:"paused"`
}

// ToggleBot pauses or resumes automated replies for one patient.
func (h *Handler) ToggleBot(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	var req toggleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" || req.Paused == nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: phone, paused (boolean)")
		return
	}
	patient, ok := h.ownedPatient(w, r, doctorID, req.Phone)
	if !ok {
		return
	}
	if err := h.patients.SetBotPaused(r.Context(), patient.PhoneNumber, *req.Paused); err != nil {
		h.logger.Error("livechat: toggle bot failed", "error", err, "patient_id", patient.ID)
		writeError(w, http.StatusInternalServerError, "Failed to toggle bot")
		return
	}
	msg := "AI bot resumed"
	if *req.Paused {
		msg = "AI bot paused - You can now chat manually"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg, "isPaused": *req.Paused})
}

// Patient returns the record shown in the chat header.
func (h *Handler) Patient(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.ownedPatient(w, r, chi.URLParam(r, "doctorID"), chi.URLParam(r, "phone"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "patient": patient})
}

// Stream upgrades to a websocket carrying the doctor's new messages.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, "live stream disabled")
		return
	}
	h.hub.Serve(w, r, chi.URLParam(r, "doctorID"))
}

// ownedPatient loads the patient and hides patients of other doctors as 404.
// Dashboard numbers may carry a leading plus; stored ones never do.
func (h *Handler) ownedPatient(w http.ResponseWriter, r *http.Request, doctorID, phone string) (*patients.Patient, bool) {
	patient, err := h.patients.Get(r.Context(), doctors.NormalizePhone(phone))
	if err == nil && patient.DoctorID != doctorID {
		err = patients.ErrNotFound
	}
	if err != nil {
		h.lookupFailed(w, "patient", err, doctorID)
		return nil, false
	}
	return patient, true
}

func (h *Handler) lookupFailed(w http.ResponseWriter, what string, err error, doctorID string) {
	if errors.Is(err, patients.ErrNotFound) || errors.Is(err, doctors.ErrNotFound) {
		writeError(w, http.StatusNotFound, strings.ToUpper(what[:1])+what[1:]+" not found")
		return
	}
	h.logger.Error("livechat: lookup failed", "what", what, "error", err, "doctor_id", doctorID)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
