package chatlog

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type recordingListener struct {
	got []Message
}

func (r *recordingListener) MessageLogged(msg Message) { r.got = append(r.got, msg) }

func TestLogDefaultsAndNotifies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	listener := &recordingListener{}
	store := NewStore(mock, listener)
	created := time.Now()

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), "d-1", "p-1", "9198", DirectionOutgoing, "text", "hello", "", "wamid.1", "sent", false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	msg, err := store.Log(context.Background(), Message{
		DoctorID:          "d-1",
		PatientID:         "p-1",
		PhoneNumber:       "9198",
		Direction:         DirectionOutgoing,
		Body:              "hello",
		WhatsAppMessageID: "wamid.1",
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if msg.ID == "" || !msg.CreatedAt.Equal(created) {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(listener.got) != 1 || listener.got[0].Status != "sent" {
		t.Fatalf("listener not notified: %+v", listener.got)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	now := time.Now()
	mock.ExpectQuery("FROM messages").
		WithArgs("d-1", "9198", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "patient_id", "phone_number", "direction", "message_type", "message_body", "media_url", "whatsapp_message_id", "status", "sent_by_doctor", "created_at"}).
			AddRow("m-2", "d-1", "p-1", "9198", DirectionIncoming, "text", "hi", "", "", "received", false, now).
			AddRow("m-1", "d-1", "p-1", "9198", DirectionOutgoing, "text", "hello", "", "", "sent", true, now.Add(-time.Minute)))

	msgs, err := store.History(context.Background(), "d-1", "9198", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m-2" || !msgs[1].SentByDoctor {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}
