package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/lobby/internal/infrastructure/validate"
)

const (
	FieldText       = "text"
	FieldSenderID   = "senderId"
	FieldSenderName = "senderName"
	FieldTimestamp  = "timestamp"

	maxMessageLength = 2000
)

var validateMessageText = validate.Field("message",
	validate.Required(),
	validate.MaxLength(maxMessageLength),
)

type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewMessageText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if err := validateMessageText(text); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return text, nil
}
