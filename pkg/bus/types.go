package bus

// Channels that never leave the process.
const (
	ChannelCLI    = "cli"
	ChannelHTTP   = "http"
	ChannelSystem = "system"
)

func IsInternalChannel(channel string) bool {
	switch channel {
	case ChannelCLI, ChannelHTTP, ChannelSystem:
		return true
	}
	return false
}

// Kind tells consumers what produced an outbound message.
type Kind string

const (
	KindAnswer Kind = "answer"
	KindDigest Kind = "digest"
)

// Metadata keys set on inbound messages.
const (
	MetaCommand   = "command"
	MetaMessageID = "message_id"
)

// CommandReport is the MetaCommand value asking for the strategic report
// instead of an answer.
const CommandReport = "report"

// InboundMessage is a question asked on a chat channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Session returns the conversation key, falling back to channel:chat.
func (m InboundMessage) Session() string {
	if m.SessionKey != "" {
		return m.SessionKey
	}
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is text to deliver to a chat.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	Kind    Kind   `json:"kind,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}
