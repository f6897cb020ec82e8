package wechat

import (
	"strings"
	"time"

	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
)

// inboundMessage is one normalized gateway message flowing through the
// admit/normalize/gate pipeline. Never mutated after creation; the gate
// carries cleaned text separately.
type inboundMessage struct {
	MsgID        string
	SelfTargetID string // the recipient id the account saw (ToUserName)
	SenderID     string
	SenderName   string
	Text         string
	Timestamp    time.Time
	IsGroup      bool
	GroupID      string
	GroupName    string
	MsgType      int
	RawContent   string
}

// newInboundMessage converts a raw sync entry. For group messages the true
// sender is recovered from the content's attribution prefix; the prefix is
// stripped before normalization.
func newInboundMessage(m *protocol.SyncMessage) *inboundMessage {
	from := string(m.FromUserName)
	content := string(m.Content)

	msg := &inboundMessage{
		MsgID:        m.ID(),
		SelfTargetID: string(m.ToUserName),
		SenderID:     from,
		Timestamp:    time.Unix(m.CreateTime, 0),
		MsgType:      m.MsgType,
		RawContent:   content,
	}

	if m.IsGroup() {
		msg.IsGroup = true
		msg.GroupID = from
		if sender, body, ok := splitGroupSender(content); ok {
			msg.SenderID = sender
			content = body
		}
	}

	msg.Text = content
	if name := strings.TrimSpace(pushSenderName(m.PushContent)); name != "" {
		msg.SenderName = name
	}
	return msg
}

// ChatID returns the peer id replies should be addressed to.
func (m *inboundMessage) ChatID() string {
	if m.IsGroup {
		return m.GroupID
	}
	return m.SenderID
}

// pushSenderName extracts the display name from a "Name : text" push
// preview, the only place the gateway exposes group member names.
func pushSenderName(push string) string {
	if push == "" {
		return ""
	}
	if idx := strings.Index(push, " : "); idx > 0 {
		return push[:idx]
	}
	return ""
}
