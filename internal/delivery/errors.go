package delivery

import "fmt"

type Code string

const (
	CodeUnknownSender       Code = "UNKNOWN_SENDER"
	CodeUnknownConversation Code = "UNKNOWN_CONVERSATION"
	CodeNotAMember          Code = "NOT_A_MEMBER"
	CodeEmptyContent        Code = "EMPTY_CONTENT"
	CodeNotPersisted        Code = "NOT_PERSISTED"
	CodeInternal            Code = "INTERNAL"
)

// Error is a send rejection reported to the originating connection only.
// It never reaches other connections.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func errUnknownSender() *Error {
	return &Error{Code: CodeUnknownSender, Message: "User not found"}
}

func errUnknownConversation() *Error {
	return &Error{Code: CodeUnknownConversation, Message: "Conversation not found"}
}

func errNotAMember() *Error {
	return &Error{Code: CodeNotAMember, Message: "Access denied: You are not a member of this conversation"}
}

func errEmptyContent() *Error {
	return &Error{Code: CodeEmptyContent, Message: "Message or attachment is required"}
}

func errNotPersisted(cause error) *Error {
	return &Error{Code: CodeNotPersisted, Message: "Message could not be saved", cause: cause}
}
