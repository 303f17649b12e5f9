package client

import (
	"context"
	"net/http"

	"github.com/wolfeidau/grandprix/internal/models"
)

// IdentityClient talks to the identity service.
type IdentityClient struct {
	svc *service
}

// Login exchanges credentials for a session token. A rejected login never
// invalidates an existing session.
func (c *IdentityClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	var resp struct {
		Login models.LoginResult `json:"login"`
	}

	err := c.svc.do(WithoutInvalidation(ctx), call{
		op:     "login",
		method: http.MethodPost,
		path:   "/login",
		in:     req,
		out:    &resp,
		kind:   callLogin,
	})
	if err != nil {
		return nil, err
	}

	if resp.Login.Token == "" {
		return nil, &Error{Kind: KindServer, Op: "login", Message: "the server did not issue a session token"}
	}

	return &resp.Login, nil
}

// CreateUser registers a new account.
func (c *IdentityClient) CreateUser(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error) {
	var resp struct {
		User models.UserProfile `json:"user"`
	}

	err := c.svc.do(WithoutInvalidation(ctx), call{
		op:     "register",
		method: http.MethodPost,
		path:   "/users",
		in:     req,
		out:    &resp,
		kind:   callCreate,
	})
	if err != nil {
		return nil, err
	}

	return &resp.User, nil
}

// GetUser fetches a profile. Responses are cached.
func (c *IdentityClient) GetUser(ctx context.Context, id models.ID) (*models.UserProfile, error) {
	var resp struct {
		User models.UserProfile `json:"user"`
	}

	err := c.svc.do(ctx, call{
		op:     "get user",
		method: http.MethodGet,
		path:   idPath("/users/%s", id),
		out:    &resp,
		cached: true,
	})
	if err != nil {
		return nil, err
	}

	return &resp.User, nil
}

// ListUsers fetches every account visible to the caller.
func (c *IdentityClient) ListUsers(ctx context.Context) ([]models.UserProfile, error) {
	var resp struct {
		Users []models.UserProfile `json:"users"`
	}

	err := c.svc.do(ctx, call{
		op:     "list users",
		method: http.MethodGet,
		path:   "/users",
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	return resp.Users, nil
}
