package api

import "context"

// Balance is the backend's coin/point record for a user.
type Balance struct {
	ID     string `json:"id"`
	Coins  int    `json:"coins"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
}

// CoinBalance fetches a user's balance.
func (c *Client) CoinBalance(ctx context.Context, userID string) (*Balance, error) {
	var b Balance
	if err := c.get(ctx, "/coins/balance/"+userID, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PurchaseCoins buys coins. Payment processing happens server-side; the
// client only reports the chosen pack.
func (c *Client) PurchaseCoins(ctx context.Context, coinAmount int, price float64) (*Balance, error) {
	var b Balance
	body := map[string]interface{}{
		"coinAmount": coinAmount,
		"price":      price,
	}
	if err := c.post(ctx, "/coins/purchase", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
