package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	// OwnerID is the tenant the event belongs to.
	OwnerID string `json:"ownerId"`
	Data    []byte `json:"data"`
}

// Routing keys - using consistent event/command patterns
const (
	EventMessageSent  = "message.sent"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
	EventRoomCreated  = "room.created"
	EventRoomDeleted  = "room.deleted"
)
