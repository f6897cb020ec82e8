package protocol

import (
	"context"
	"strings"
)

// SendText sends a text message to a user or group.
// at optionally lists member wxids to @mention in a group message.
func (c *Client) SendText(ctx context.Context, toWxid, content string, at []string) error {
	if content == "" {
		return nil
	}

	payload := map[string]any{
		"Wxid":    c.wxid,
		"ToWxid":  toWxid,
		"Content": content,
		"Type":    MsgTypeText,
	}
	if len(at) > 0 {
		payload["At"] = strings.Join(at, ",")
	}

	_, _, err := c.postJSON(ctx, "send", "/api/Msg/SendTxt", payload)
	return err
}
