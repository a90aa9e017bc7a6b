package ws

const (
	RoomsSnapshotEvent    = "rooms.snapshot"
	MessagesSnapshotEvent = "messages.snapshot"
	StreamErrorEvent      = "stream.error"
)

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewSnapshot(event, roomID string, data any) *WSMessage {
	return &WSMessage{Type: event, RoomID: roomID, Data: data}
}

func NewStreamError(roomID, msg string, retry bool) *WSMessage {
	return &WSMessage{
		Type:   StreamErrorEvent,
		RoomID: roomID,
		Data:   ErrorPayload{Message: msg, Retry: retry},
	}
}
