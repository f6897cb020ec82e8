package wechat

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat/protocol"
)

// App-message type codes embedded in the <appmsg><type> field.
const (
	appTypeLinkCard  = 5
	appTypeQuote     = 57
	appTypeTransfer  = 2000
	appTypeRedPacket = 2001
)

const redPacketPlaceholder = "[Red packet]"

// groupSenderPattern matches the attribution line a group payload carries
// in front of the body: "<senderId>:\n".
var groupSenderPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_\-.@]{0,63}):\n`)

// appMsg is the parsed subset of the tagged app-message payload.
type appMsg struct {
	XMLName xml.Name `xml:"msg"`
	App     struct {
		Type  int    `xml:"type"`
		Title string `xml:"title"`
		Des   string `xml:"des"`
		URL   string `xml:"url"`
		Refer struct {
			DisplayName string `xml:"displayname"`
			Content     string `xml:"content"`
		} `xml:"refermsg"`
	} `xml:"appmsg"`
}

// normalizeContent extracts human-readable text from a raw message body.
// Returns ok=false when the message carries nothing dispatchable (e.g. a
// transfer marker).
func normalizeContent(content string, msgType int) (string, bool) {
	switch msgType {
	case protocol.MsgTypeText:
		text := strings.TrimSpace(content)
		return text, text != ""
	case protocol.MsgTypeApp:
		return normalizeAppMessage(content)
	default:
		return "", false
	}
}

// normalizeAppMessage dispatches on the embedded app-message type code.
func normalizeAppMessage(content string) (string, bool) {
	var msg appMsg
	if err := xml.Unmarshal([]byte(strings.TrimSpace(content)), &msg); err != nil {
		// Malformed payloads fall back to the raw body rather than being lost.
		text := strings.TrimSpace(content)
		return text, text != ""
	}

	app := msg.App
	switch app.Type {
	case appTypeTransfer:
		return "", false

	case appTypeQuote:
		title := strings.TrimSpace(app.Title)
		quoted := strings.TrimSpace(app.Refer.Content)
		if title == "" {
			return quoted, quoted != ""
		}
		if quoted == "" {
			return "[Quote: " + title + "]", true
		}
		return "[Quote: " + title + "]\n" + quoted, true

	case appTypeLinkCard:
		parts := make([]string, 0, 3)
		for _, p := range []string{app.Title, app.URL, app.Des} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true

	case appTypeRedPacket:
		return redPacketPlaceholder, true

	default:
		if title := strings.TrimSpace(app.Title); title != "" {
			return title, true
		}
		text := strings.TrimSpace(content)
		return text, text != ""
	}
}

// splitGroupSender splits a group payload's "<senderId>:\n<body>" attribution
// line, recovering the true sender id.
func splitGroupSender(content string) (senderID, body string, ok bool) {
	m := groupSenderPattern.FindStringSubmatch(content)
	if m == nil {
		return "", content, false
	}
	return m[1], content[len(m[0]):], true
}
