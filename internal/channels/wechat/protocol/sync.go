package protocol

import "context"

// Sync pulls pending messages from the gateway's sync endpoint. Used by the
// poll ingestion path as a catch-up behind the webhook push.
func (c *Client) Sync(ctx context.Context) ([]SyncMessage, error) {
	payload := map[string]any{
		"Wxid":    c.wxid,
		"Scene":   0,
		"Synckey": "",
	}

	env, raw, err := c.postJSON(ctx, "sync", "/api/Msg/Sync", payload)
	if err != nil {
		return nil, err
	}

	// Entries usually live under Data, but some gateway builds return them
	// at the top level of the response body.
	if msgs := ExtractAddMsgs(env.Data); msgs != nil {
		return msgs, nil
	}
	return ExtractAddMsgs(raw), nil
}
