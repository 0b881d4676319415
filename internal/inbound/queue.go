// Package inbound moves normalized WhatsApp events from the webhook to the
// router through a queue, so the webhook can acknowledge Meta immediately.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
)

// Queue is the transport both producers and consumers speak. groupKey names
// the ordering group of the message (one patient); queues that can keep
// per-group order across consumers use it.
type Queue interface {
	Send(ctx context.Context, body, groupKey string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

func encodeEvent(evt router.InboundEvent) (router.InboundEvent, string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return router.InboundEvent{}, "", fmt.Errorf("inbound: encode event: %w", err)
	}
	return evt, string(body), nil
}

func decodeEvent(body string) (router.InboundEvent, error) {
	var evt router.InboundEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return router.InboundEvent{}, fmt.Errorf("inbound: decode event: %w", err)
	}
	return evt, nil
}
