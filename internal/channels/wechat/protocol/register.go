package protocol

import "context"

// RegisterCallback registers the bridge's webhook URL with the gateway so
// that new messages are pushed instead of waiting for the next sync poll.
// Called once per monitor start; failure is non-fatal (the poll path still
// picks messages up).
func (c *Client) RegisterCallback(ctx context.Context, callbackURL string) error {
	payload := map[string]any{
		"Wxid": c.wxid,
		"Url":  callbackURL,
	}
	_, _, err := c.postJSON(ctx, "register-callback", "/api/Tools/SetCallback", payload)
	return err
}

// Heartbeat issues one keep-alive call. The monitor runs this on a ticker to
// keep the gateway session from being reclaimed.
func (c *Client) Heartbeat(ctx context.Context) error {
	payload := map[string]any{
		"Wxid": c.wxid,
	}
	_, _, err := c.postJSON(ctx, "heartbeat", "/api/Login/HeartBeat", payload)
	return err
}
