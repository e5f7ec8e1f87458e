package orch

import (
	"context"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// Read-only views for the REST surface. They answer from in-memory state and
// consult persistence only for authorization.

func (o *Orchestrator) ChannelParticipants(ctx context.Context, uid domain.UserID, room domain.RoomID) ([]core.ParticipantDTO, error) {
	if _, err := o.Voice.Authorize(ctx, uid, room); err != nil {
		return nil, err
	}
	return o.Voice.Participants(room), nil
}

func (o *Orchestrator) ServerRooms(ctx context.Context, uid domain.UserID, server domain.ServerID) ([]core.RoomView, error) {
	if err := o.requireMember(ctx, uid, server); err != nil {
		return nil, err
	}
	return o.Voice.ServerRooms(server), nil
}

// IdentityVoiceState returns the live flags of a seated identity, otherwise
// the persisted ones.
func (o *Orchestrator) IdentityVoiceState(ctx context.Context, uid domain.UserID) domain.VoiceFlags {
	return o.Voice.State(ctx, uid)
}

func (o *Orchestrator) OnlineUsers() []domain.User {
	return o.Registry.OnlineUsers()
}

// ServerOnline lists the online members of server.
func (o *Orchestrator) ServerOnline(ctx context.Context, uid domain.UserID, server domain.ServerID) ([]domain.User, error) {
	if err := o.requireMember(ctx, uid, server); err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithTimeout(ctx, o.Voice.Timeout)
	defer cancel()
	ids, err := o.Store.ListServerMemberIDs(readCtx, server)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("server", string(server)).Msg("member lookup failed")
		o.Metrics.PersistenceError("list_server_members")
		return nil, domain.ErrInternal
	}
	members := make(map[domain.UserID]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	out := make([]domain.User, 0)
	for _, u := range o.Registry.OnlineUsers() {
		if _, ok := members[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (o *Orchestrator) requireMember(ctx context.Context, uid domain.UserID, server domain.ServerID) error {
	readCtx, cancel := context.WithTimeout(ctx, o.Voice.Timeout)
	defer cancel()
	ok, err := o.Store.IsServerMember(readCtx, server, uid)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("server", string(server)).Str("user", string(uid)).Msg("membership lookup failed")
		o.Metrics.PersistenceError("is_server_member")
		return domain.ErrInternal
	}
	if !ok {
		return domain.ErrNotAMember
	}
	return nil
}
