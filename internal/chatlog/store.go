package chatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Direction of a logged message relative to the clinic.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message is one row of the WhatsApp chat history.
type Message struct {
	ID                string    `json:"id"`
	DoctorID          string    `json:"doctor_id"`
	PatientID         string    `json:"patient_id,omitempty"`
	PhoneNumber       string    `json:"phone_number"`
	Direction         string    `json:"direction"`
	Type              string    `json:"message_type"`
	Body              string    `json:"message_body"`
	MediaURL          string    `json:"media_url,omitempty"`
	WhatsAppMessageID string    `json:"whatsapp_message_id,omitempty"`
	Status            string    `json:"status"`
	SentByDoctor      bool      `json:"sent_by_doctor"`
	CreatedAt         time.Time `json:"created_at"`
}

// Listener is notified after a message is persisted.
type Listener interface {
	MessageLogged(msg Message)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store records inbound and outbound messages for the live-chat view.
type Store struct {
	db        querier
	listeners []Listener
}

// NewStore wraps a pgx pool. listeners are notified after each insert.
func NewStore(db querier, listeners ...Listener) *Store {
	if db == nil {
		panic("chatlog: pgx pool required")
	}
	return &Store{db: db, listeners: listeners}
}

// Log inserts msg, filling id and status defaults.
func (s *Store) Log(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	if msg.Status == "" {
		msg.Status = "received"
		if msg.Direction == DirectionOutgoing {
			msg.Status = "sent"
		}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (id, doctor_id, patient_id, phone_number, direction, message_type,
			message_body, media_url, whatsapp_message_id, status, sent_by_doctor)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
		RETURNING created_at
	`, msg.ID, msg.DoctorID, msg.PatientID, msg.PhoneNumber, msg.Direction, msg.Type,
		msg.Body, msg.MediaURL, msg.WhatsAppMessageID, msg.Status, msg.SentByDoctor).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("chatlog: insert: %w", err)
	}
	for _, l := range s.listeners {
		l.MessageLogged(msg)
	}
	return msg, nil
}

// History returns the newest limit messages between a doctor and a phone.
func (s *Store) History(ctx context.Context, doctorID, phone string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, COALESCE(patient_id::text, ''), phone_number, direction, message_type,
			COALESCE(message_body, ''), COALESCE(media_url, ''), COALESCE(whatsapp_message_id, ''),
			status, sent_by_doctor, created_at
		FROM messages
		WHERE doctor_id = $1 AND phone_number = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, doctorID, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("chatlog: history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.DoctorID, &m.PatientID, &m.PhoneNumber, &m.Direction, &m.Type,
			&m.Body, &m.MediaURL, &m.WhatsAppMessageID, &m.Status, &m.SentByDoctor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatlog: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatlog: rows: %w", err)
	}
	return out, nil
}
