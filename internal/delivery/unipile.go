// Package delivery sends generated messages to contacts.
package delivery

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/models"
)

// previewLength bounds the message excerpt echoed back in acknowledgments.
const previewLength = 50

// Sender delivers a message to a contact. An error means nothing was sent.
type Sender interface {
	Send(ctx context.Context, recipient models.Profile, message string) (models.DeliveryAck, error)
}

// Unipile stands in for the Unipile messaging API. It performs no network
// call and always acknowledges the message as sent.
type Unipile struct {
	log zerolog.Logger
	now func() time.Time
}

func NewUnipile(log zerolog.Logger) *Unipile {
	return &Unipile{log: log, now: time.Now}
}

func (u *Unipile) Send(_ context.Context, recipient models.Profile, message string) (models.DeliveryAck, error) {
	ack := models.DeliveryAck{
		Success:        true,
		MessageID:      "msg_" + ulid.Make().String(),
		Status:         "sent",
		Recipient:      recipient.Name,
		SentAt:         u.now().UTC(),
		MessageContent: Preview(message),
	}

	u.log.Info().
		Str("recipient", recipient.Name).
		Str("message_id", ack.MessageID).
		Msg("mock Unipile API call - sent message")

	return ack, nil
}

// Preview truncates message to previewLength runes, marking the cut with "...".
func Preview(message string) string {
	runes := []rune(message)
	if len(runes) <= previewLength {
		return message
	}
	return string(runes[:previewLength]) + "..."
}
