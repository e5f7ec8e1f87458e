package domain

import "errors"

type ErrorKind string

const (
	KindNotFound         ErrorKind = "NotFound"
	KindWrongChannelType ErrorKind = "WrongChannelType"
	KindNotAMember       ErrorKind = "NotAMember"
	KindRoomFull         ErrorKind = "RoomFull"
	KindNotAuthenticated ErrorKind = "NotAuthenticated"
	KindRateLimited      ErrorKind = "RateLimited"
	KindBadRequest       ErrorKind = "BadRequest"
	KindInternal         ErrorKind = "Internal"
)

// Error is a validation failure returned to the requesting connection.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind ErrorKind `json:"kind"`
	Msg  string    `json:"message"`
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "channel not found"}
	ErrWrongChannelType = &Error{Kind: KindWrongChannelType, Msg: "channel is not a voice channel"}
	ErrNotAMember       = &Error{Kind: KindNotAMember, Msg: "not a member of this server"}
	ErrRoomFull         = &Error{Kind: KindRoomFull, Msg: "voice channel is full"}
	ErrNotAuthenticated = &Error{Kind: KindNotAuthenticated, Msg: "user not authenticated"}
	ErrRateLimited      = &Error{Kind: KindRateLimited, Msg: "too many requests"}
	ErrInternal         = &Error{Kind: KindInternal, Msg: "internal error"}
)

// NewError builds an error of a known kind with a custom message.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// AsError maps any error onto the wire taxonomy. Unknown errors become
// Internal so storage details never reach the client.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal
}

// KindOf returns the wire kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
