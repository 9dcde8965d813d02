package rest

import "context"

// GetUser gets a user's public profile by Id
func (c *Client) GetUser(ctx context.Context, userId string) (*User, error) {
	var result User
	if err := c.get(ctx, "/users/"+userId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchUsers searches users by username or email fragment
func (c *Client) SearchUsers(ctx context.Context, query string) ([]*User, error) {
	var result []*User
	params := map[string]string{"q": query}
	if err := c.get(ctx, "/users/search", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetOnlineUsers lists users currently online
func (c *Client) GetOnlineUsers(ctx context.Context) ([]*User, error) {
	var result []*User
	if err := c.get(ctx, "/users/online", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetContacts lists the current user's contacts
func (c *Client) GetContacts(ctx context.Context) ([]*User, error) {
	var result []*User
	if err := c.get(ctx, "/users/contacts", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AddContact adds a user to the current user's contacts
func (c *Client) AddContact(ctx context.Context, userId string) error {
	return c.post(ctx, "/users/contacts/"+userId, nil, nil)
}

// RemoveContact removes a user from the current user's contacts
func (c *Client) RemoveContact(ctx context.Context, userId string) error {
	return c.delete(ctx, "/users/contacts/"+userId, nil)
}
