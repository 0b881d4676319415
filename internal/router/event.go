package router

import (
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
)

// InboundEvent is one normalized patient message. It is the payload of the
// inbound job queue, so it must stay JSON-serializable.
type InboundEvent struct {
	ID            string    `json:"id"`
	DoctorID      string    `json:"doctor_id"`
	From          string    `json:"from"`
	ContactName   string    `json:"contact_name,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
	Type          string    `json:"type"`
	Text          string    `json:"text,omitempty"`
	InteractiveID string    `json:"interactive_id,omitempty"`
	MediaID       string    `json:"media_id,omitempty"`
	MimeType      string    `json:"mime_type,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// LockKey scopes serialization to one patient of one doctor.
func (e InboundEvent) LockKey() string {
	return e.DoctorID + ":" + e.From
}

// EventFromMessage normalizes a webhook message. Unsupported types report false.
func EventFromMessage(doctorID, contactName string, msg whatsapp.InboundMessage, receivedAt time.Time) (InboundEvent, bool) {
	evt := InboundEvent{
		DoctorID:    doctorID,
		From:        msg.From,
		ContactName: strings.TrimSpace(contactName),
		MessageID:   msg.ID,
		Type:        msg.Type,
		ReceivedAt:  receivedAt,
	}
	switch msg.Type {
	case whatsapp.MessageTypeText:
		if msg.Text == nil {
			return evt, false
		}
		evt.Text = msg.Text.Body
	case whatsapp.MessageTypeImage:
		if msg.Image == nil || msg.Image.ID == "" {
			return evt, false
		}
		evt.MediaID = msg.Image.ID
		evt.MimeType = msg.Image.MimeType
		evt.Text = msg.Image.Caption
	case whatsapp.MessageTypeInteractive:
		sel, ok := msg.Interactive.Selection()
		if !ok {
			return evt, false
		}
		evt.InteractiveID = sel.ID
		evt.Text = sel.Title
	case whatsapp.MessageTypeButton:
		if msg.Button == nil {
			return evt, false
		}
		evt.Type = whatsapp.MessageTypeInteractive
		evt.InteractiveID = msg.Button.Payload
		evt.Text = msg.Button.Text
	default:
		return evt, false
	}
	return evt, msg.From != ""
}
