package signal

import (
	"context"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	ChannelID domain.RoomID `json:"channelId"`
}

type joinedReply struct {
	ChannelID    domain.RoomID         `json:"channelId"`
	Participants []core.ParticipantDTO `json:"participants"`
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid core.SessionID, conn *WsSignalConn, env inbound) {
	var p joinPayload
	if !ctl.decode(conn, "voice:error", env, &p) {
		return
	}
	if !ctl.allow(sid, opJoin) {
		ctl.sendError(conn, "voice:error", env.Ref, domain.ErrRateLimited)
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.ChannelID)).Msg("join")
	list, err := ctl.Orch.JoinVoice(ctx, sid, p.ChannelID)
	if err != nil {
		ctl.sendError(conn, "voice:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "voice:joined", env.Ref, joinedReply{ChannelID: p.ChannelID, Participants: list})
}

// handleLeave leaves the current voice room; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, sid core.SessionID, conn *WsSignalConn, env inbound) {
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if err := ctl.Orch.LeaveVoice(ctx, sid); err != nil {
		ctl.sendError(conn, "voice:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "voice:left", env.Ref, nil)
}

func (ctl *SignalWSController) handleUpdateState(ctx context.Context, sid core.SessionID, conn *WsSignalConn, env inbound) {
	var patch domain.VoiceFlagsPatch
	if !ctl.decode(conn, "voice:error", env, &patch) {
		return
	}
	if err := ctl.Orch.UpdateVoiceState(ctx, sid, patch); err != nil {
		ctl.sendError(conn, "voice:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "voice:stateUpdated", env.Ref, map[string]bool{"ok": true})
}

func (ctl *SignalWSController) handleGetState(ctx context.Context, sid core.SessionID, conn *WsSignalConn, env inbound) {
	flags, err := ctl.Orch.VoiceState(ctx, sid)
	if err != nil {
		ctl.sendError(conn, "voice:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "voice:state", env.Ref, flags)
}

type roomPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (ctl *SignalWSController) handleSubscribe(sid core.SessionID, conn *WsSignalConn, env inbound) {
	var p roomPayload
	if !ctl.decode(conn, "room:error", env, &p) {
		return
	}
	if err := ctl.Orch.Subscribe(sid, p.RoomID); err != nil {
		ctl.sendError(conn, "room:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "room:subscribed", env.Ref, p)
}

func (ctl *SignalWSController) handleUnsubscribe(sid core.SessionID, conn *WsSignalConn, env inbound) {
	var p roomPayload
	if !ctl.decode(conn, "room:error", env, &p) {
		return
	}
	if err := ctl.Orch.Unsubscribe(sid, p.RoomID); err != nil {
		ctl.sendError(conn, "room:error", env.Ref, err)
		return
	}
	ctl.sendReply(conn, "room:unsubscribed", env.Ref, p)
}
