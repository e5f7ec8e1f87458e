package orch

import (
	"context"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinVoice seats the connection in a voice channel. If the connection went
// away while the join was in flight, the join is undone by a leave.
func (o *Orchestrator) JoinVoice(ctx context.Context, sid core.SessionID, room domain.RoomID) ([]core.ParticipantDTO, error) {
	c, err := o.connection(sid)
	if err != nil {
		return nil, err
	}
	if room == "" {
		return nil, domain.NewError(domain.KindBadRequest, "channelId is required")
	}
	list, err := o.Voice.Join(ctx, sid, c.User, room)
	if err != nil {
		return nil, err
	}
	if _, ok := o.Registry.Get(sid); !ok {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("connection closed during join, leaving")
		o.Voice.Leave(ctx, sid, c.User.ID)
		return nil, domain.ErrNotAuthenticated
	}
	return list, nil
}

func (o *Orchestrator) LeaveVoice(ctx context.Context, sid core.SessionID) error {
	c, err := o.connection(sid)
	if err != nil {
		return err
	}
	o.Voice.Leave(ctx, sid, c.User.ID)
	return nil
}

func (o *Orchestrator) UpdateVoiceState(ctx context.Context, sid core.SessionID, patch domain.VoiceFlagsPatch) error {
	c, err := o.connection(sid)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return domain.NewError(domain.KindBadRequest, "no voice flags given")
	}
	o.Voice.UpdateState(ctx, sid, c.User.ID, patch)
	return nil
}

func (o *Orchestrator) VoiceState(ctx context.Context, sid core.SessionID) (domain.VoiceFlags, error) {
	c, err := o.connection(sid)
	if err != nil {
		return domain.VoiceFlags{}, err
	}
	return o.Voice.State(ctx, c.User.ID), nil
}

// Subscribe attaches the connection to a room's event stream. It is
// independent from voice membership.
func (o *Orchestrator) Subscribe(sid core.SessionID, room domain.RoomID) error {
	if _, err := o.connection(sid); err != nil {
		return err
	}
	if room == "" {
		return domain.NewError(domain.KindBadRequest, "roomId is required")
	}
	o.Fanout.Subscribe(sid, room)
	return nil
}

func (o *Orchestrator) Unsubscribe(sid core.SessionID, room domain.RoomID) error {
	if _, err := o.connection(sid); err != nil {
		return err
	}
	o.Fanout.Unsubscribe(sid, room)
	return nil
}

// WhoAmI returns the connection's identity and, when seated, its voice room.
func (o *Orchestrator) WhoAmI(sid core.SessionID) (domain.User, domain.RoomID, error) {
	c, err := o.connection(sid)
	if err != nil {
		return domain.User{}, "", err
	}
	room, seatSID, ok := o.Voice.RoomOf(c.User.ID)
	if !ok || seatSID != sid {
		room = ""
	}
	return c.User, room, nil
}
