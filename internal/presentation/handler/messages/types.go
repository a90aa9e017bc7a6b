package messages

type sendMessageRequest struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}
