package signal

import (
	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn *WsSignalConn, env inbound) {
	user, room, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		ctl.sendError(conn, "error", env.Ref, err)
		return
	}
	resp := struct {
		domain.User
		ConnectionID core.SessionID `json:"connectionId"`
		Room         domain.RoomID  `json:"room,omitempty"`
	}{
		User:         user,
		ConnectionID: sid,
		Room:         room,
	}
	ctl.sendReply(conn, "whoami", env.Ref, resp)
}
