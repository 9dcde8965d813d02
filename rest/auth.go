package rest

import (
	"context"
	"io"
)

// Register registers a new user and returns a session token
// The token is automatically stored in the client for subsequent requests
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	var result LoginResponse
	if err := c.post(ctx, "/auth/register", req, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// Login authenticates a user and returns a session token
// The token is automatically stored in the client for subsequent requests
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var result LoginResponse
	req := &LoginRequest{Email: email, Password: password}
	if err := c.post(ctx, "/auth/login", req, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// Logout invalidates the current session server-side
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/auth/logout", nil, nil)
}

// Me returns the user record bound to the current session token
func (c *Client) Me(ctx context.Context) (*User, error) {
	var result User
	if err := c.get(ctx, "/auth/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProfile updates the current user's profile
func (c *Client) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*User, error) {
	var result User
	if err := c.put(ctx, "/auth/profile", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChangePassword changes the current user's password
func (c *Client) ChangePassword(ctx context.Context, current, newPassword string) error {
	req := &ChangePasswordRequest{CurrentPassword: current, NewPassword: newPassword}
	return c.put(ctx, "/auth/password", req, nil)
}

// UploadAvatar uploads a new avatar image for the current user
func (c *Client) UploadAvatar(ctx context.Context, filename string, file io.Reader) (*User, error) {
	body, contentType, err := buildMultipart(nil, "avatar", filename, file)
	if err != nil {
		return nil, err
	}
	var result User
	if err := c.postRaw(ctx, "/auth/avatar", contentType, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
