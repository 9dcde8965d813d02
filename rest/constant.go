package rest

// Conversation types
const (
	ConversationTypePrivate = 1 // One-to-one chat
	ConversationTypeGroup   = 2 // Group chat
)

// Message types
const (
	MsgTypeText  = 1
	MsgTypeImage = 2
	MsgTypeFile  = 3
)

// Participant role levels
const (
	RoleLevelMember = 0
	RoleLevelOwner  = 1
)

// MsgTypeToName converts a message type to a readable name
func MsgTypeToName(msgType int32) string {
	switch msgType {
	case MsgTypeText:
		return "text"
	case MsgTypeImage:
		return "image"
	case MsgTypeFile:
		return "file"
	default:
		return "unknown"
	}
}
