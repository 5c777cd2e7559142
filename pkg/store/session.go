package store

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxTurns is the number of user/assistant pairs a window keeps.
const DefaultMaxTurns = 10

// Turn is one entry in a conversation history window.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionKey scopes one keyed window, e.g. a chat channel id.
type SessionKey string

// DigestRequest is built per run and consumed by the synthesizer or formatter.
type DigestRequest struct {
	SourceRecords       []NormalizedRecord
	RawSignal           string
	InstructionTemplate string
	SizeLimit           int
}

// MentionPolicy controls which mentions a delivered message may ping.
type MentionPolicy string

const MentionSuppressAll MentionPolicy = "suppress-all"

// DeliveryPayload is the bounded content handed to a delivery sink.
type DeliveryPayload struct {
	Content       string
	MentionPolicy MentionPolicy
}
