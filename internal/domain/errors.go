package domain

// ErrorKind classifies an Error for transport mapping.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindFailure
)

// Error carries a stable code+message pair. Validation and NotFound are
// expected and surfaced to callers as-is; Failure is logged with context and
// returned as a generic message.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func ValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func ConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func FailureError(code, message string) *Error {
	return &Error{Kind: KindFailure, Code: code, Message: message}
}
