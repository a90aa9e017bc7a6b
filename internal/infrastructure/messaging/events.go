package messaging

import (
	"time"

	"github.com/hilthontt/lobby/internal/domain"
)

const (
	RoomsQueue      = "lobby.rooms"
	MessagesQueue   = "lobby.messages"
	DeadLetterQueue = "lobby.dead_letter_queue"
)

// RoomEventData is the payload of every room lifecycle event. Only the
// fields relevant to the routing key are set.
type RoomEventData struct {
	RoomID      string          `json:"roomId"`
	Room        *domain.Room    `json:"room,omitempty"`
	Member      *domain.Member  `json:"member,omitempty"`
	MemberID    string          `json:"memberId,omitempty"`
	Message     *domain.Message `json:"message,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	RoomDeleted bool            `json:"roomDeleted,omitempty"`
	At          time.Time       `json:"at"`
}
