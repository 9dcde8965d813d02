package rest

import (
	"context"
	"io"
	"strconv"
)

// ListMessages pulls a page of messages for a conversation, oldest first
// within the page as delivered by the server
func (c *Client) ListMessages(ctx context.Context, conversationId string, page, limit int) ([]*Message, error) {
	params := map[string]string{}
	if page > 0 {
		params["page"] = strconv.Itoa(page)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var result ListMessagesResponse
	if err := c.get(ctx, "/messages/"+conversationId, params, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// SendMedia uploads an image or file message. The response is the created
// message record, so no realtime round trip is needed before rendering it.
func (c *Client) SendMedia(ctx context.Context, conversationId, caption, filename string, file io.Reader) (*Message, error) {
	fields := map[string]string{
		"conversation_id": conversationId,
		"caption":         caption,
	}
	body, contentType, err := buildMultipart(fields, "file", filename, file)
	if err != nil {
		return nil, err
	}

	var result Message
	if err := c.postRaw(ctx, "/messages/media", contentType, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EditMessage replaces a message's content
func (c *Client) EditMessage(ctx context.Context, messageId, content string) (*Message, error) {
	var result Message
	req := &EditMessageRequest{Content: content}
	if err := c.put(ctx, "/messages/"+messageId, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteMessage soft-deletes a message
func (c *Client) DeleteMessage(ctx context.Context, messageId string) error {
	return c.delete(ctx, "/messages/"+messageId, nil)
}

// GetUnreadCount gets the aggregate unread count across all conversations
func (c *Client) GetUnreadCount(ctx context.Context) (int64, error) {
	var result UnreadCountResponse
	if err := c.get(ctx, "/messages/unread/count", nil, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}
