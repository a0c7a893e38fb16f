package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
	ErrEmptyMessage        = fmt.Errorf("message text is empty")
	ErrSessionClosed       = fmt.Errorf("session is closed")
	ErrSendTimeout         = fmt.Errorf("send timed out before the server acknowledged")
	ErrConversationUnknown = fmt.Errorf("conversation not found")
	ErrNotParticipant      = fmt.Errorf("caller is not a participant of this conversation")
	ErrMessageUnknown      = fmt.Errorf("message not found")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists   = fmt.Errorf("user already exists")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
)
