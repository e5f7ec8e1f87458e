package core

import (
	"context"
	"errors"

	"github.com/dkeye/parley/internal/domain"
)

// Frame is an encoded event ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Directory is the read side of persistence used for validation and scoping.
// Find* methods return (nil, nil) when the row does not exist.
type Directory interface {
	FindUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	SetUserStatus(ctx context.Context, id domain.UserID, status string) error
	FindChannel(ctx context.Context, id domain.RoomID) (*domain.Channel, error)
	IsServerMember(ctx context.Context, server domain.ServerID, user domain.UserID) (bool, error)
	ListServerIDsForUser(ctx context.Context, user domain.UserID) ([]domain.ServerID, error)
	ListServerMemberIDs(ctx context.Context, server domain.ServerID) ([]domain.UserID, error)
}

// VoiceStateStore mirrors voice flags. It is never read as live truth.
type VoiceStateStore interface {
	FindVoiceState(ctx context.Context, user domain.UserID) (*domain.VoiceState, error)
	UpsertVoiceState(ctx context.Context, user domain.UserID, patch domain.VoiceStatePatch) error
	DeleteVoiceState(ctx context.Context, user domain.UserID) error
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/dkeye/parley/internal/core Store

type Store interface {
	Directory
	VoiceStateStore
}

// Emitter delivers typed events. Delivery is fire-and-forget.
type Emitter interface {
	EmitToRoom(room domain.RoomID, event string, payload any)
	EmitToServer(ctx context.Context, server domain.ServerID, event string, payload any)
	EmitToConnection(sid SessionID, event string, payload any)
}

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)
