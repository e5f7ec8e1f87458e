// Package orch wires the registry, presence, voice rooms, signal relay and
// fan-out into the operations a transport adapter calls.
package orch

import (
	"context"
	"time"

	"github.com/dkeye/parley/internal/app"
	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Presence *app.Presence
	Voice    *app.VoiceRooms
	Relay    *app.SignalRelay
	Fanout   *app.Fanout
	Store    core.Store
	Metrics  metrics.Recorder

	// transitions serializes each identity's connect and disconnect with the
	// status write and broadcast they trigger.
	transitions app.KeyedMutex[domain.UserID]
}

// Options tune the components built by New.
type Options struct {
	Policy  app.Policy
	Mirror  app.Mirror
	Metrics metrics.Recorder
	// Timeout bounds every persistence call made on behalf of a request.
	Timeout time.Duration
}

// New builds the full graph around store. Zero options fall back to
// component defaults.
func New(store core.Store, opts Options) *Orchestrator {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	reg := app.NewRegistry()

	fan := app.NewFanout(reg, store)
	fan.Metrics = rec
	fan.Mirror = opts.Mirror
	if opts.Policy != nil {
		fan.Policy = opts.Policy
	}

	presence := app.NewPresence(store, fan)
	presence.Metrics = rec

	voice := app.NewVoiceRooms(store, fan)
	voice.Metrics = rec

	relay := app.NewSignalRelay(reg, fan)
	relay.Metrics = rec

	if opts.Timeout > 0 {
		fan.Timeout = opts.Timeout
		presence.Timeout = opts.Timeout
		voice.Timeout = opts.Timeout
	}

	return &Orchestrator{
		Registry: reg,
		Presence: presence,
		Voice:    voice,
		Relay:    relay,
		Fanout:   fan,
		Store:    store,
		Metrics:  rec,
	}
}

// OnConnect registers an authenticated connection and announces the
// identity when it is its first one.
func (o *Orchestrator) OnConnect(ctx context.Context, sid core.SessionID, user domain.User, sig core.SignalConnection) {
	unlock := o.transitions.Lock(user.ID)
	defer unlock()

	first := o.Registry.Register(sid, user, sig)
	o.reportConnections()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(user.ID)).Str("tag", user.Tag()).Bool("first", first).Msg("connected")
	if first {
		o.Presence.Online(ctx, user)
	}
}

// OnDisconnect is the single cleanup path for a closed connection. Unknown
// sids are ignored, so it is safe to call more than once.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	known, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	unlock := o.transitions.Lock(known.User.ID)
	defer unlock()

	conn, last, ok := o.Registry.Unregister(sid)
	if !ok {
		return
	}
	o.reportConnections()
	o.Fanout.DropConnection(sid)
	o.Voice.Leave(ctx, sid, conn.User.ID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(conn.User.ID)).Bool("last", last).Msg("disconnected")
	if last {
		o.Presence.Offline(ctx, conn.User)
	}
}

// connection looks up sid; inbound operations on unknown connections fail
// with NotAuthenticated.
func (o *Orchestrator) connection(sid core.SessionID) (app.Connection, error) {
	c, ok := o.Registry.Get(sid)
	if !ok {
		return app.Connection{}, domain.ErrNotAuthenticated
	}
	return c, nil
}

func (o *Orchestrator) reportConnections() {
	conns, users := o.Registry.Count()
	o.Metrics.SetConnections(conns)
	o.Metrics.SetOnline(users)
}
