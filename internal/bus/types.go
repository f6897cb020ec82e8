package bus

// InboundMessage represents a message received from a channel and routed
// to the downstream responder.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	PeerKind   string            `json:"peer_kind,omitempty"` // "direct" or "group"
	AccountID  string            `json:"account_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a responder payload to be delivered to a channel.
type OutboundMessage struct {
	Channel   string            `json:"channel"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Media     []MediaAttachment `json:"media,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MediaAttachment references a media file to be sent with a message.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// MessageHandler handles an inbound message from a specific channel.
type MessageHandler func(InboundMessage) error
