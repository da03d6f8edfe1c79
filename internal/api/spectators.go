package api

import (
	"context"
	"time"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// injectable for the token-expiry check in tests
var timeNow = time.Now

// Progress is the backend's per-streamer progress record for the signed-in
// spectator.
type Progress struct {
	Points int `json:"points"`
	Level  int `json:"level"`
}

// Me fetches the signed-in spectator's profile.
func (c *Client) Me(ctx context.Context) (*domain.UserSnapshot, error) {
	var snap domain.UserSnapshot
	if err := c.get(ctx, "/spectators/me", &snap); err != nil {
		return nil, err
	}
	snap.Role = domain.RoleSpectator
	return &snap, nil
}

// MyProgress fetches the spectator's points and level with one streamer.
func (c *Client) MyProgress(ctx context.Context, streamerID string) (*Progress, error) {
	var p Progress
	if err := c.get(ctx, "/spectators/me/progress/"+streamerID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddPoints awards points to the spectator's relationship with a streamer
// and returns the server-confirmed totals.
func (c *Client) AddPoints(ctx context.Context, pointsToAdd int, streamerID string) (*Progress, error) {
	var p Progress
	body := map[string]interface{}{
		"pointsToAdd": pointsToAdd,
		"streamerId":  streamerID,
	}
	if err := c.put(ctx, "/spectators/me/points", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes mutable profile fields of the signed-in spectator.
func (c *Client) UpdateProfile(ctx context.Context, id string, fields map[string]string) error {
	return c.put(ctx, "/spectators/"+id, fields, nil)
}
