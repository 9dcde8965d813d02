package rest

import "fmt"

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// IsAuthError reports whether the code belongs to the auth error family,
// meaning the session credential is invalid or expired.
func (e *Error) IsAuthError() bool {
	return e.Code == CodeUnauthorized || (e.Code >= CodeTokenInvalid && e.Code <= CodeTokenMismatch)
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam    = 1001
	CodeInternalServer  = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeTooManyRequests = 1006

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeTokenMismatch = 2004
	CodeLoginFailed   = 2005
	CodeUserNotFound  = 2006
	CodeUserExists    = 2007
	CodePasswordWrong = 2008

	// Conversation errors (3xxx)
	CodeConvNotFound   = 3001
	CodeNotParticipant = 3002
	CodeNotOwner       = 3003

	// Message errors (4xxx)
	CodeMessageNotFound = 4001
	CodeNotSender       = 4002
	CodeFileTooLarge    = 4003
	CodeBadMediaType    = 4004
)

// Predefined errors
var (
	ErrInvalidParam    = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer  = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized    = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden       = NewError(CodeForbidden, "forbidden")
	ErrNotFound        = NewError(CodeNotFound, "not found")
	ErrTooManyRequests = NewError(CodeTooManyRequests, "too many requests")

	ErrTokenInvalid  = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenExpired  = NewError(CodeTokenExpired, "token expired")
	ErrLoginFailed   = NewError(CodeLoginFailed, "login failed")
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrUserExists    = NewError(CodeUserExists, "user already exists")
	ErrPasswordWrong = NewError(CodePasswordWrong, "password wrong")

	ErrConvNotFound   = NewError(CodeConvNotFound, "conversation not found")
	ErrNotParticipant = NewError(CodeNotParticipant, "not a participant")

	ErrMessageNotFound = NewError(CodeMessageNotFound, "message not found")
	ErrNotSender       = NewError(CodeNotSender, "not the message sender")
	ErrFileTooLarge    = NewError(CodeFileTooLarge, "file too large")
)
