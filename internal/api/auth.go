package api

import (
	"context"
	"net/http"

	"github.com/orchidnexus/orchid/internal/domain"
)

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type NewUser struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// Login exchanges credentials for a bearer token. The token is not stored
// on the client; callers decide when to SetToken.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	var tok Token
	resp, err := c.request(ctx).
		SetFormData(map[string]string{"username": email, "password": password}).
		SetResult(&tok).
		ForceContentType("application/json").
		Post("/token")
	if err := c.check("POST /token", resp, err); err != nil {
		return Token{}, err
	}
	return tok, nil
}

func (c *Client) Signup(ctx context.Context, u NewUser) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, http.MethodPost, "/users/", u, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, http.MethodGet, "/users/me", nil, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := c.do(ctx, http.MethodGet, "/users/", nil, &out)
	return out, err
}
