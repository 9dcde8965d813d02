package rest

// Response represents the standard API response envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// User represents a chat user
type User struct {
	Id        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
	LastSeen  int64  `json:"last_seen,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Participant is a conversation member with a role
type Participant struct {
	User *User `json:"user"`
	Role int32 `json:"role"`
}

// Conversation represents a private or group conversation
type Conversation struct {
	Id               string         `json:"id"`
	ConversationType int32          `json:"conversation_type"`
	Name             string         `json:"name,omitempty"`
	Avatar           string         `json:"avatar,omitempty"`
	Description      string         `json:"description,omitempty"`
	Participants     []*Participant `json:"participants,omitempty"`
	LastMessage      *Message       `json:"last_message,omitempty"`
	UnreadCount      int64          `json:"unread_count"`
	UpdatedAt        int64          `json:"updated_at"`
}

// DisplayName returns the name shown for the conversation. Group
// conversations carry their own name; private conversations are named
// after the counterpart participant.
func (c *Conversation) DisplayName(localUserId string) string {
	if c.ConversationType == ConversationTypeGroup {
		return c.Name
	}
	if p := c.Counterpart(localUserId); p != nil {
		return p.User.Username
	}
	return c.Name
}

// DisplayAvatar returns the avatar shown for the conversation.
func (c *Conversation) DisplayAvatar(localUserId string) string {
	if c.ConversationType == ConversationTypeGroup {
		return c.Avatar
	}
	if p := c.Counterpart(localUserId); p != nil {
		return p.User.Avatar
	}
	return c.Avatar
}

// Counterpart returns the other participant of a private conversation.
func (c *Conversation) Counterpart(localUserId string) *Participant {
	for _, p := range c.Participants {
		if p.User != nil && p.User.Id != localUserId {
			return p
		}
	}
	return nil
}

// Attachment holds the media reference of an image or file message
type Attachment struct {
	Url      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message represents a chat message
type Message struct {
	Id             string      `json:"id"`
	ConversationId string      `json:"conversation_id"`
	Sender         *User       `json:"sender"`
	MsgType        int32       `json:"msg_type"`
	Content        string      `json:"content"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	ClientMsgId    string      `json:"client_msg_id,omitempty"`
	Edited         bool        `json:"edited"`
	Deleted        bool        `json:"deleted"`
	ReadBy         []string    `json:"read_by,omitempty"`
	CreatedAt      int64       `json:"created_at"`
}

// ===== Request types =====

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents user login/registration response
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UpdateProfileRequest represents profile update request
type UpdateProfileRequest struct {
	Username string `json:"username,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ChangePasswordRequest represents password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// CreatePrivateRequest represents private conversation creation request
type CreatePrivateRequest struct {
	UserId string `json:"user_id"`
}

// CreateGroupRequest represents group conversation creation request
type CreateGroupRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Avatar         string   `json:"avatar,omitempty"`
	ParticipantIds []string `json:"participant_ids"`
}

// UpdateConversationRequest represents conversation update request
type UpdateConversationRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

// AddParticipantRequest represents add participant request
type AddParticipantRequest struct {
	UserId string `json:"user_id"`
}

// EditMessageRequest represents message edit request
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ListMessagesResponse represents paginated message listing response
type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
	Page     int        `json:"page"`
	Total    int64      `json:"total"`
}

// UnreadCountResponse represents aggregate unread count response
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}
