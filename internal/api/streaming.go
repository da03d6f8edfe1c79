package api

import "context"

// StartStream tells the backend the signed-in streamer went live on a
// channel.
func (c *Client) StartStream(ctx context.Context, channelName string) error {
	body := map[string]string{"channelName": channelName}
	return c.post(ctx, "/streaming/start", body, nil)
}

// StopStream tells the backend the signed-in streamer went offline.
func (c *Client) StopStream(ctx context.Context) error {
	return c.post(ctx, "/streaming/stop", nil, nil)
}
