package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// inbound is the request envelope. Ref is echoed on the reply.
type inbound struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type reply struct {
	Type  string        `json:"type"`
	Ref   string        `json:"ref,omitempty"`
	Data  any           `json:"data,omitempty"`
	Error *domain.Error `json:"error,omitempty"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			c.Close()
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump serializes every inbound message of one connection and runs the
// disconnect path when the socket ends for any reason.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		reg, ok := ctl.Orch.Registry.Get(sid)
		ctl.Orch.OnDisconnect(context.WithoutCancel(ctx), sid)
		if ok && ctl.Limits != nil && !ctl.Orch.Registry.IsOnline(reg.User.ID) {
			ctl.Limits.Forget(reg.User.ID)
		}
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var env inbound
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "error", "", domain.NewError(domain.KindBadRequest, "malformed message"))
		return
	}

	switch env.Type {
	case "voice:join":
		ctl.handleJoin(ctx, sid, c, env)
	case "voice:leave":
		ctl.handleLeave(ctx, sid, c, env)
	case "voice:updateState":
		ctl.handleUpdateState(ctx, sid, c, env)
	case "voice:getState":
		ctl.handleGetState(ctx, sid, c, env)
	case "voice:signal":
		ctl.handleVoiceSignal(sid, c, env)
	case "room:subscribe":
		ctl.handleSubscribe(sid, c, env)
	case "room:unsubscribe":
		ctl.handleUnsubscribe(sid, c, env)
	case "ping":
		ctl.handlePing(c, env)
	case "whoami":
		ctl.handleWhoAmI(sid, c, env)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "error", env.Ref, domain.NewError(domain.KindBadRequest, "unknown message type"))
	}
}

// decode unmarshals env.Data into v, replying BadRequest on failure.
func (ctl *SignalWSController) decode(c *WsSignalConn, errType string, env inbound, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("type", env.Type).Msg("bad payload")
		ctl.sendError(c, errType, env.Ref, domain.NewError(domain.KindBadRequest, "bad payload"))
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("reply dropped")
	}
}

func (ctl *SignalWSController) sendReply(c *WsSignalConn, typ, ref string, data any) {
	ctl.sendJSON(c, reply{Type: typ, Ref: ref, Data: data})
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, typ, ref string, err error) {
	ctl.sendJSON(c, reply{Type: typ, Ref: ref, Error: domain.AsError(err)})
}
