package chat

import (
	"context"
	"errors"
	"io"

	"github.com/mbeoliero/parley/realtime"
	"github.com/mbeoliero/parley/rest"
)

// DeletedPlaceholder replaces the content of tombstoned messages
const DeletedPlaceholder = "This message has been deleted"

// MessageState tags a message's reconciliation state
type MessageState int8

const (
	MessagePending MessageState = iota
	MessageConfirmed
	MessageTombstoned
)

// Message is a message as held by the engine: the server record plus the
// local reconciliation state
type Message struct {
	rest.Message
	State MessageState
}

var (
	ErrNotConnected        = errors.New("chat: realtime channel not connected")
	ErrEmptyContent        = errors.New("chat: empty message content")
	ErrUnknownConversation = errors.New("chat: unknown conversation")
	ErrFileTooLarge        = errors.New("chat: file exceeds upload limit")
	ErrEmptyFile           = errors.New("chat: empty file")
)

// API is the slice of the REST surface the engine depends on.
// *rest.Client satisfies it; tests use fakes.
type API interface {
	ListConversations(ctx context.Context) ([]*rest.Conversation, error)
	ListMessages(ctx context.Context, conversationId string, page, limit int) ([]*rest.Message, error)
	MarkRead(ctx context.Context, conversationId string) error
	SendMedia(ctx context.Context, conversationId, caption, filename string, file io.Reader) (*rest.Message, error)
	EditMessage(ctx context.Context, messageId, content string) (*rest.Message, error)
	DeleteMessage(ctx context.Context, messageId string) error
	CreatePrivateConversation(ctx context.Context, userId string) (*rest.Conversation, error)
	CreateGroupConversation(ctx context.Context, req *rest.CreateGroupRequest) (*rest.Conversation, error)
}

// Channel is the slice of the connection manager the engine depends on.
// *realtime.Manager satisfies it.
type Channel interface {
	Emit(event string, payload interface{}) error
	Subscribe(event string, h realtime.Handler) int
	Unsubscribe(event string, id int)
	State() realtime.State
	IsOnline(userId string) bool
}

// SendMessagePayload is the outbound message:send payload
type SendMessagePayload struct {
	ConversationId string `json:"conversation_id"`
	Content        string `json:"content"`
	ClientMsgId    string `json:"client_msg_id,omitempty"`
}

// DeletedPayload is the inbound message:deleted payload
type DeletedPayload struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id"`
}

// TypingPayload carries inbound typing:start and typing:stop events
type TypingPayload struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Username       string `json:"username,omitempty"`
}

// NotificationPayload is the inbound notification:message payload, sent for
// conversations the user has not joined as a room
type NotificationPayload struct {
	ConversationId string        `json:"conversation_id"`
	Message        *rest.Message `json:"message"`
}
