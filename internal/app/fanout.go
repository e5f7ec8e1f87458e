package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire shape of every pushed event.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func Encode(event string, payload any) (core.Frame, error) {
	return json.Marshal(Envelope{Type: event, Data: payload})
}

// Mirror receives a copy of every encoded event. Publishing is best-effort.
type Mirror interface {
	Publish(scope, id, event string, frame []byte)
}

const (
	ScopeRoom       = "room"
	ScopeServer     = "server"
	ScopeConnection = "conn"
)

// Fanout implements core.Emitter on top of the registry. Room scope is an
// explicit subscription set; server scope is resolved from persistence on
// every emission.
type Fanout struct {
	Registry *Registry
	Dir      core.Directory
	Policy   Policy
	Mirror   Mirror
	Metrics  metrics.Recorder
	Timeout  time.Duration

	mu    sync.RWMutex
	subs  map[domain.RoomID]map[core.SessionID]struct{}
	bySID map[core.SessionID]map[domain.RoomID]struct{}
}

func NewFanout(reg *Registry, dir core.Directory) *Fanout {
	return &Fanout{
		Registry: reg,
		Dir:      dir,
		Policy:   DropPolicy{},
		Metrics:  metrics.Nop{},
		Timeout:  2 * time.Second,
		subs:     make(map[domain.RoomID]map[core.SessionID]struct{}),
		bySID:    make(map[core.SessionID]map[domain.RoomID]struct{}),
	}
}

func (f *Fanout) Subscribe(sid core.SessionID, room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[room] == nil {
		f.subs[room] = make(map[core.SessionID]struct{})
	}
	f.subs[room][sid] = struct{}{}
	if f.bySID[sid] == nil {
		f.bySID[sid] = make(map[domain.RoomID]struct{})
	}
	f.bySID[sid][room] = struct{}{}
}

func (f *Fanout) Unsubscribe(sid core.SessionID, room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeLocked(sid, room)
}

func (f *Fanout) unsubscribeLocked(sid core.SessionID, room domain.RoomID) {
	if members, ok := f.subs[room]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(f.subs, room)
		}
	}
	if rooms, ok := f.bySID[sid]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(f.bySID, sid)
		}
	}
}

// DropConnection removes every subscription held by sid.
func (f *Fanout) DropConnection(sid core.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for room := range f.bySID[sid] {
		f.unsubscribeLocked(sid, room)
	}
}

func (f *Fanout) Subscribers(room domain.RoomID) []core.SessionID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.SessionID, 0, len(f.subs[room]))
	for sid := range f.subs[room] {
		out = append(out, sid)
	}
	return out
}

func (f *Fanout) EmitToRoom(room domain.RoomID, event string, payload any) {
	frame, ok := f.encode(event, payload)
	if !ok {
		return
	}
	targets := make([]Connection, 0)
	for _, sid := range f.Subscribers(room) {
		if c, ok := f.Registry.Get(sid); ok {
			targets = append(targets, c)
		}
	}
	f.deliver(event, targets, frame)
	f.mirror(ScopeRoom, string(room), event, frame)
}

func (f *Fanout) EmitToServer(ctx context.Context, server domain.ServerID, event string, payload any) {
	frame, ok := f.encode(event, payload)
	if !ok {
		return
	}
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.Timeout)
	ids, err := f.Dir.ListServerMemberIDs(lookupCtx, server)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("module", "app.fanout").Str("server", string(server)).Str("event", event).Msg("member lookup failed, event skipped")
		f.Metrics.PersistenceError("list_server_members")
		return
	}
	targets := make([]Connection, 0, len(ids))
	for _, uid := range ids {
		targets = append(targets, f.Registry.ConnectionsFor(uid)...)
	}
	f.deliver(event, targets, frame)
	f.mirror(ScopeServer, string(server), event, frame)
}

func (f *Fanout) EmitToConnection(sid core.SessionID, event string, payload any) {
	frame, ok := f.encode(event, payload)
	if !ok {
		return
	}
	c, ok := f.Registry.Get(sid)
	if !ok {
		log.Debug().Str("module", "app.fanout").Str("sid", string(sid)).Str("event", event).Msg("target connection gone")
		f.Metrics.EventDropped(event, 1)
		return
	}
	f.deliver(event, []Connection{c}, frame)
	f.mirror(ScopeConnection, string(sid), event, frame)
}

func (f *Fanout) encode(event string, payload any) (core.Frame, bool) {
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("event", event).Msg("encode event")
		return nil, false
	}
	return frame, true
}

// deliver works on a snapshot of targets and never blocks on a slow peer.
func (f *Fanout) deliver(event string, targets []Connection, frame core.Frame) {
	sent, dropped := 0, 0
	for _, c := range targets {
		err := c.Signal.TrySend(frame)
		if err == nil {
			sent++
			continue
		}
		dropped++
		if !errors.Is(err, core.ErrBackpressure) || f.Policy == nil {
			continue
		}
		switch f.Policy.OnBackPressure(c, event) {
		case KickConnection:
			log.Warn().Str("module", "app.fanout").Str("sid", string(c.ID)).Str("user", string(c.User.ID)).Str("event", event).Msg("slow connection kicked")
			c.Signal.Close()
		case DropEvent, NoAction:
			log.Debug().Str("module", "app.fanout").Str("sid", string(c.ID)).Str("event", event).Msg("event dropped on full buffer")
		}
	}
	if sent > 0 {
		f.Metrics.EventDelivered(event, sent)
	}
	if dropped > 0 {
		f.Metrics.EventDropped(event, dropped)
	}
}

func (f *Fanout) mirror(scope, id, event string, frame core.Frame) {
	if f.Mirror == nil {
		return
	}
	f.Mirror.Publish(scope, id, event, frame)
}
