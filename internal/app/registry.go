package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connection is a registered transport endpoint with the identity snapshot
// taken at connect time.
type Connection struct {
	ID          core.SessionID
	User        domain.User
	Signal      core.SignalConnection
	ConnectedAt time.Time
}

// Registry maps connection ids to identities. One identity may hold many
// connections; byUser keeps them in registration order.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.SessionID]*Connection
	byUser map[domain.UserID][]core.SessionID
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.SessionID]*Connection),
		byUser: make(map[domain.UserID][]core.SessionID),
		now:    time.Now,
	}
}

// Register binds sid to user. It reports whether this is the identity's
// first connection. Registering a known sid again changes nothing.
func (r *Registry) Register(sid core.SessionID, user domain.User, sig core.SignalConnection) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[sid]; ok {
		return false
	}
	r.conns[sid] = &Connection{ID: sid, User: user, Signal: sig, ConnectedAt: r.now()}
	first = len(r.byUser[user.ID]) == 0
	r.byUser[user.ID] = append(r.byUser[user.ID], sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Bool("first", first).Msg("registered connection")
	return first
}

// Unregister removes sid. ok is false when sid was already absent; last
// reports that the identity has no connections left.
func (r *Registry) Unregister(sid core.SessionID) (conn Connection, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[sid]
	if !ok {
		return Connection{}, false, false
	}
	delete(r.conns, sid)

	uid := c.User.ID
	sids := r.byUser[uid]
	for i, s := range sids {
		if s == sid {
			sids = append(sids[:i:i], sids[i+1:]...)
			break
		}
	}
	if len(sids) == 0 {
		delete(r.byUser, uid)
		last = true
	} else {
		r.byUser[uid] = sids
	}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(uid)).Bool("last", last).Msg("unregistered connection")
	return *c, last, true
}

func (r *Registry) Get(sid core.SessionID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sid]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// ConnectionsFor returns the identity's connections in registration order.
func (r *Registry) ConnectionsFor(uid domain.UserID) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sids := r.byUser[uid]
	out := make([]Connection, 0, len(sids))
	for _, sid := range sids {
		out = append(out, *r.conns[sid])
	}
	return out
}

func (r *Registry) IsOnline(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[uid]) > 0
}

// OnlineUsers lists every identity with a connection, using the snapshot of
// its oldest connection. Sorted by id.
func (r *Registry) OnlineUsers() []domain.User {
	r.mu.RLock()
	out := make([]domain.User, 0, len(r.byUser))
	for _, sids := range r.byUser {
		out = append(out, r.conns[sids[0]].User)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns (connections, online identities).
func (r *Registry) Count() (conns int, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser)
}
