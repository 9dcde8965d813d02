package rest

import "context"

// ListConversations gets all conversations for the current user
func (c *Client) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var result []*Conversation
	if err := c.get(ctx, "/conversations", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversation gets a specific conversation
func (c *Client) GetConversation(ctx context.Context, conversationId string) (*Conversation, error) {
	var result Conversation
	if err := c.get(ctx, "/conversations/"+conversationId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePrivateConversation creates (or returns the existing) one-to-one
// conversation with the given user
func (c *Client) CreatePrivateConversation(ctx context.Context, userId string) (*Conversation, error) {
	var result Conversation
	req := &CreatePrivateRequest{UserId: userId}
	if err := c.post(ctx, "/conversations/private", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateGroupConversation creates a new group conversation
func (c *Client) CreateGroupConversation(ctx context.Context, req *CreateGroupRequest) (*Conversation, error) {
	var result Conversation
	if err := c.post(ctx, "/conversations/group", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateConversation updates a conversation's metadata
func (c *Client) UpdateConversation(ctx context.Context, conversationId string, req *UpdateConversationRequest) (*Conversation, error) {
	var result Conversation
	if err := c.put(ctx, "/conversations/"+conversationId, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddParticipant adds a user to a group conversation
func (c *Client) AddParticipant(ctx context.Context, conversationId, userId string) error {
	req := &AddParticipantRequest{UserId: userId}
	return c.post(ctx, "/conversations/"+conversationId+"/participants", req, nil)
}

// RemoveParticipant removes a user from a group conversation
func (c *Client) RemoveParticipant(ctx context.Context, conversationId, userId string) error {
	return c.delete(ctx, "/conversations/"+conversationId+"/participants/"+userId, nil)
}

// LeaveConversation removes the current user from a group conversation
func (c *Client) LeaveConversation(ctx context.Context, conversationId string) error {
	return c.post(ctx, "/conversations/"+conversationId+"/leave", nil, nil)
}

// MarkRead marks all messages in a conversation as read
func (c *Client) MarkRead(ctx context.Context, conversationId string) error {
	return c.post(ctx, "/conversations/"+conversationId+"/read", nil, nil)
}
