package whatsapp

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := "sha256=" + Sign("secret", body)

	if err := VerifySignature("secret", body, header); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}
	if err := VerifySignature("other", body, header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := VerifySignature("secret", body, ""); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected missing, got %v", err)
	}
}

func TestInteractiveSelection(t *testing.T) {
	var nilReply *InteractiveReply
	if _, ok := nilReply.Selection(); ok {
		t.Fatalf("nil reply should have no selection")
	}
	r := &InteractiveReply{Type: "button_reply", ButtonReply: &ReplyItem{ID: "book_appt", Title: "Book"}}
	item, ok := r.Selection()
	if !ok || item.ID != "book_appt" {
		t.Fatalf("unexpected selection %#v", item)
	}
}
