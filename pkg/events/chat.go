package events

// ChatMessage is the wire shape of an inbound chat event on
// chat.inbound.<channel>.
type ChatMessage struct {
	MessageId string `json:"message_id"`
	ChannelId string `json:"channel_id"`
	AuthorId  string `json:"author_id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	IsBot     bool   `json:"is_bot"`
}

// ChatReply is published on chat.outbound.<channel>.
type ChatReply struct {
	ChannelId     string `json:"channel_id"`
	ReplyTo       string `json:"reply_to,omitempty"`
	Content       string `json:"content"`
	MentionPolicy string `json:"mention_policy"`
}

// Typing is published on chat.typing.<channel>.
type Typing struct {
	ChannelId string `json:"channel_id"`
}
