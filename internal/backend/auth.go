package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// SignupRequest is the payload of POST /auth/signup.
type SignupRequest struct {
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	Password    string             `json:"password"`
	AccountType domain.AccountType `json:"accountType,omitempty"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	var sess domain.Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &sess)
	if err != nil {
		return nil, err
	}
	if !sess.Valid() {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "login response carried no token"}
	}
	return &sess, nil
}

// Signup creates an account and returns its session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*domain.Session, error) {
	var sess domain.Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/signup",
		path:   "/auth/signup",
		body:   req,
		public: true,
	}, &sess)
	if err != nil {
		return nil, err
	}
	if !sess.Valid() {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "signup response carried no token"}
	}
	return &sess, nil
}

// Me returns the profile of the logged-in user. The API answers either with
// the bare user or with {"user": {...}}.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, route: "/auth/me", path: "/auth/me"}, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode /auth/me response: %w", err)
	}
	return &u, nil
}
