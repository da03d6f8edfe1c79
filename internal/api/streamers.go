package api

import (
	"context"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// HoursResult is the server-confirmed streamed-hours record.
type HoursResult struct {
	HoursStreamed float64 `json:"hoursStreamed"`
	Level         int     `json:"level"`
}

// Streamers lists every registered streamer with live status.
func (c *Client) Streamers(ctx context.Context) ([]domain.Streamer, error) {
	var list []domain.Streamer
	if err := c.get(ctx, "/streamers", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Streamer fetches one streamer's profile.
func (c *Client) Streamer(ctx context.Context, id string) (*domain.UserSnapshot, error) {
	var snap domain.UserSnapshot
	if err := c.get(ctx, "/streamers/"+id, &snap); err != nil {
		return nil, err
	}
	snap.Role = domain.RoleStreamer
	return &snap, nil
}

// LiveStreamers lists streamers currently live.
func (c *Client) LiveStreamers(ctx context.Context) ([]domain.Streamer, error) {
	var list []domain.Streamer
	if err := c.get(ctx, "/streamers/live", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddHours credits streamed hours to a streamer and returns the confirmed
// totals.
func (c *Client) AddHours(ctx context.Context, streamerID string, hoursToAdd float64) (*HoursResult, error) {
	var res HoursResult
	body := map[string]float64{"hoursToAdd": hoursToAdd}
	if err := c.put(ctx, "/streamers/"+streamerID+"/hours", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Levels fetches a streamer's viewer-level ladder.
func (c *Client) Levels(ctx context.Context, streamerID string) ([]domain.LevelThreshold, error) {
	var list []domain.LevelThreshold
	if err := c.get(ctx, "/streamers/"+streamerID+"/levels", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SaveLevels replaces a streamer's viewer-level ladder.
func (c *Client) SaveLevels(ctx context.Context, streamerID string, levels []domain.LevelThreshold) error {
	return c.put(ctx, "/streamers/"+streamerID+"/levels", levels, nil)
}
