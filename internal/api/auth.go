package api

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// LoginResult is the backend's answer to register/login.
type LoginResult struct {
	Message string              `json:"message"`
	User    domain.UserSnapshot `json:"user"`
	Token   string              `json:"token"`
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, name, email, password string, role domain.Role) (*LoginResult, error) {
	var res LoginResult
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"type":     string(role),
	}
	if err := c.post(ctx, "/auth/register", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Login signs into an existing account.
func (c *Client) Login(ctx context.Context, email, password string, role domain.Role) (*LoginResult, error) {
	var res LoginResult
	body := map[string]string{
		"email":    email,
		"password": password,
		"type":     string(role),
	}
	if err := c.post(ctx, "/auth/login", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// TokenUsable reports whether a persisted token is still worth presenting to
// the backend. The signature is not verified here, only the expiry claim: the
// backend remains the authority.
func TokenUsable(token string) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.After(timeNow())
}
