package app

import (
	"context"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Presence announces online/offline transitions. The caller decides when a
// transition happened (Registry.Register/Unregister report it); Presence only
// fans it out and mirrors the status.
type Presence struct {
	Dir     core.Directory
	Emitter core.Emitter
	Metrics metrics.Recorder
	Timeout time.Duration
}

func NewPresence(dir core.Directory, emitter core.Emitter) *Presence {
	return &Presence{
		Dir:     dir,
		Emitter: emitter,
		Metrics: metrics.Nop{},
		Timeout: 2 * time.Second,
	}
}

func (p *Presence) Online(ctx context.Context, u domain.User) {
	p.Metrics.PresenceTransition(domain.StatusOnline)
	p.setStatus(ctx, u.ID, domain.StatusOnline)
	p.broadcast(ctx, u.ID, core.EventUserOnline, core.UserOnline{
		IdentityID:    u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
	})
}

func (p *Presence) Offline(ctx context.Context, u domain.User) {
	p.Metrics.PresenceTransition(domain.StatusOffline)
	p.setStatus(ctx, u.ID, domain.StatusOffline)
	p.broadcast(ctx, u.ID, core.EventUserOffline, core.UserOffline{
		IdentityID:    u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
	})
}

// broadcast fetches the identity's servers once per transition.
func (p *Presence) broadcast(ctx context.Context, uid domain.UserID, event string, payload any) {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	servers, err := p.Dir.ListServerIDsForUser(lookupCtx, uid)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("user", string(uid)).Str("event", event).Msg("server lookup failed, presence not announced")
		p.Metrics.PersistenceError("list_servers_for_user")
		return
	}
	for _, sid := range servers {
		p.Emitter.EmitToServer(ctx, sid, event, payload)
	}
	log.Info().Str("module", "app.presence").Str("user", string(uid)).Str("event", event).Int("servers", len(servers)).Msg("presence transition")
}

func (p *Presence) setStatus(ctx context.Context, uid domain.UserID, status string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()
	if err := p.Dir.SetUserStatus(writeCtx, uid, status); err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("user", string(uid)).Str("status", status).Msg("status write failed")
		p.Metrics.PersistenceError("set_user_status")
	}
}
