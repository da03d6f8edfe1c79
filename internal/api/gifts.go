package api

import (
	"context"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// SendGiftResult is the backend's confirmation of a gift transfer. The
// sender's coin balance in it is authoritative.
type SendGiftResult struct {
	SenderCoins int `json:"senderCoins"`
}

// Gifts fetches a streamer's gift catalog.
func (c *Client) Gifts(ctx context.Context, streamerID string) ([]domain.Gift, error) {
	var list []domain.Gift
	if err := c.get(ctx, "/gifts/"+streamerID, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateGift adds a catalog entry for the signed-in streamer.
func (c *Client) CreateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error) {
	var created domain.Gift
	if err := c.post(ctx, "/gifts", gift, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateGift edits a catalog entry.
func (c *Client) UpdateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error) {
	var updated domain.Gift
	if err := c.put(ctx, "/gifts/"+gift.ID, gift, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteGift removes a catalog entry.
func (c *Client) DeleteGift(ctx context.Context, giftID string) error {
	return c.delete(ctx, "/gifts/"+giftID)
}

// SendGift transfers a gift to a streamer, debiting the sender's coins.
// Returns ErrInsufficientCoins when the backend rejects the balance.
func (c *Client) SendGift(ctx context.Context, receiverID, giftID string, amount int) (*SendGiftResult, error) {
	var res SendGiftResult
	body := map[string]interface{}{
		"receiverId": receiverID,
		"giftId":     giftID,
		"amount":     amount,
	}
	if err := c.post(ctx, "/gifts/send", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GiftHistory fetches the gifts a user has received.
func (c *Client) GiftHistory(ctx context.Context, userID string) ([]domain.GiftHistoryEntry, error) {
	var list []domain.GiftHistoryEntry
	if err := c.get(ctx, "/gifts/history/"+userID, &list); err != nil {
		return nil, err
	}
	return list, nil
}
