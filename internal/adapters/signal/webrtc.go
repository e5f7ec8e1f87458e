package signal

import (
	"encoding/json"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/pion/webrtc/v4"
)

type signalPayload struct {
	ToIdentityID domain.UserID   `json:"toIdentityId"`
	Data         json.RawMessage `json:"data"`
}

// handleVoiceSignal relays offers, answers and candidates between peers.
// Media never passes through the server.
func (ctl *SignalWSController) handleVoiceSignal(sid core.SessionID, conn *WsSignalConn, env inbound) {
	var p signalPayload
	if !ctl.decode(conn, "voice:error", env, &p) {
		return
	}
	if len(p.Data) == 0 {
		ctl.sendError(conn, "voice:error", env.Ref, domain.NewError(domain.KindBadRequest, "data is required"))
		return
	}
	if !ctl.allow(sid, opSignal) {
		ctl.sendError(conn, "voice:error", env.Ref, domain.ErrRateLimited)
		return
	}
	if err := ctl.Orch.Signal(sid, p.ToIdentityID, p.Data); err != nil {
		ctl.sendError(conn, "voice:error", env.Ref, err)
	}
}

// ICEServers turns configured urls into the browser-facing RTCIceServer list.
func ICEServers(urls []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		out = append(out, webrtc.ICEServer{URLs: []string{u}})
	}
	return out
}
