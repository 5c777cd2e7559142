package dto

// InboundMessage is one chat event, from the NATS gateway or the HTTP
// ingress.
type InboundMessage struct {
	MessageId string `json:"message_id"`
	ChannelId string `json:"channel_id" validate:"required"`
	AuthorId  string `json:"author_id"`
	Author    string `json:"author"`
	Content   string `json:"content" validate:"max=8000"`
	IsBot     bool   `json:"is_bot"`
}

// Reply kinds.
const (
	ReplyKindAnswer  = "answer"
	ReplyKindReset   = "reset"
	ReplyKindNoText  = "no_text"
	ReplyKindError   = "error"
	ReplyKindIgnored = "ignored"
)

type ChatReplyResponse struct {
	ChannelId string `json:"channel_id"`
	Kind      string `json:"kind"`
	Content   string `json:"content,omitempty"`
	Turns     int    `json:"turns"`
}
