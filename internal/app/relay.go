package app

import (
	"encoding/json"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SignalRelay forwards opaque peer-to-peer signaling between identities.
// It keeps no state of its own.
type SignalRelay struct {
	Registry *Registry
	Emitter  core.Emitter
	Metrics  metrics.Recorder
}

func NewSignalRelay(reg *Registry, emitter core.Emitter) *SignalRelay {
	return &SignalRelay{Registry: reg, Emitter: emitter, Metrics: metrics.Nop{}}
}

// Relay delivers data to the first registered connection of to. It reports
// false when the target is offline; the payload is then dropped.
func (r *SignalRelay) Relay(from domain.UserID, to domain.UserID, data json.RawMessage) bool {
	kind := SignalKind(data)
	conns := r.Registry.ConnectionsFor(to)
	if len(conns) == 0 {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Str("kind", kind).Msg("target offline, signal dropped")
		r.Metrics.SignalDropped(kind)
		return false
	}
	r.Emitter.EmitToConnection(conns[0].ID, core.EventVoiceSignal, core.VoiceSignal{
		FromIdentityID: from,
		Data:           data,
	})
	r.Metrics.SignalRelayed(kind)
	log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Str("sid", string(conns[0].ID)).Str("kind", kind).Msg("signal relayed")
	return true
}

// SignalKind labels a payload for logs and metrics: an SDP type
// (offer, answer, pranswer, rollback), "candidate", or "unknown".
// The payload itself is never altered.
func SignalKind(data json.RawMessage) string {
	var probe struct {
		Type      string          `json:"type"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "unknown"
	}
	if t := webrtc.NewSDPType(probe.Type); t != webrtc.SDPTypeUnknown {
		return t.String()
	}
	if len(probe.Candidate) > 0 && string(probe.Candidate) != "null" {
		return "candidate"
	}
	return "unknown"
}
