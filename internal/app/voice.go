package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/rs/zerolog/log"
)

type seat struct {
	room domain.RoomID
	sid  core.SessionID
}

// leavePlan is a membership scheduled for removal by a join.
type leavePlan struct {
	room   domain.RoomID
	server domain.ServerID
	sid    core.SessionID
	member *domain.Member
}

// VoiceRooms owns every live voice room. All in-memory state is guarded by
// a single mutex; persistence and fan-out happen after it is released.
// Operations of one identity run one at a time from validation to the last
// emitted event, so server members see its joins and leaves in commit order.
//
// A room exists iff it has at least one member, and an identity holds at
// most one seat across all rooms.
type VoiceRooms struct {
	store   core.Store
	emitter core.Emitter
	ops     KeyedMutex[domain.UserID]

	Metrics metrics.Recorder
	Timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	meta    map[domain.RoomID]domain.Channel
	members *MembershipStore[domain.RoomID, *domain.Member]
	seats   map[domain.UserID]seat
}

func NewVoiceRooms(store core.Store, emitter core.Emitter) *VoiceRooms {
	return &VoiceRooms{
		store:   store,
		emitter: emitter,
		Metrics: metrics.Nop{},
		Timeout: 2 * time.Second,
		now:     time.Now,
		meta:    make(map[domain.RoomID]domain.Channel),
		members: NewMembershipStore[domain.RoomID, *domain.Member](),
		seats:   make(map[domain.UserID]seat),
	}
}

// Join seats the connection in room and returns the full participant list.
func (v *VoiceRooms) Join(ctx context.Context, sid core.SessionID, user domain.User, room domain.RoomID) ([]core.ParticipantDTO, error) {
	l := log.With().Str("module", "app.voice").Str("sid", string(sid)).Str("user", string(user.ID)).Str("room", string(room)).Logger()

	unlock := v.ops.Lock(user.ID)
	defer unlock()

	ch, err := v.Authorize(ctx, user.ID, room)
	if err != nil {
		l.Info().Str("kind", string(domain.KindOf(err))).Msg("join rejected")
		v.Metrics.JoinRejected(string(domain.KindOf(err)))
		return nil, err
	}
	flags := v.loadFlags(ctx, user.ID)

	v.mu.Lock()
	if cur, ok := v.seats[user.ID]; ok && cur.room == room && cur.sid == sid {
		list := v.participantsLocked(room)
		v.mu.Unlock()
		l.Debug().Msg("already in room")
		return list, nil
	}

	// The current seat is given up before the capacity check, so a stale
	// seat in the target room does not count and a rejected move still
	// leaves the old room.
	plan := v.computeLeaveIfNeeded(user.ID)
	v.applyLeave(plan)

	if ch.Capacity > 0 && v.members.Count(room) >= ch.Capacity {
		rooms := v.members.Len()
		v.mu.Unlock()
		v.Metrics.SetRooms(rooms)
		if plan != nil {
			v.finishLeave(ctx, user.ID, plan)
		}
		l.Info().Int("capacity", ch.Capacity).Msg("join rejected, room full")
		v.Metrics.JoinRejected(string(domain.KindRoomFull))
		return nil, domain.ErrRoomFull
	}

	member := domain.NewMember(user, flags, v.now())
	v.applyJoin(*ch, sid, member)
	list := v.participantsLocked(room)
	joined := toDTO(room, sid, member)
	seated := member.Flags
	rooms := v.members.Len()
	v.mu.Unlock()

	v.Metrics.SetRooms(rooms)
	if plan != nil {
		v.finishLeave(ctx, user.ID, plan)
	}

	v.persist(ctx, "upsert_voice_state", func(ctx context.Context) error {
		return v.store.UpsertVoiceState(ctx, user.ID, domain.VoiceStatePatch{
			ChannelID: &room,
			VoiceFlagsPatch: domain.VoiceFlagsPatch{
				Mute:     &seated.Mute,
				Deafen:   &seated.Deafen,
				Speaking: &seated.Speaking,
			},
		})
	})
	v.emitter.EmitToServer(ctx, ch.ServerID, core.EventVoiceUserJoined, core.VoiceUserJoined{
		ChannelID:     room,
		IdentityID:    user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.Avatar,
		ConnectionID:  sid,
		JoinedAt:      joined.JoinedAt,
	})
	v.Metrics.VoiceJoined()
	l.Info().Int("participants", len(list)).Msg("joined voice room")
	return list, nil
}

// Leave removes sid from its room. A connection that holds no seat is a
// no-op, even if another connection of the same identity is seated.
func (v *VoiceRooms) Leave(ctx context.Context, sid core.SessionID, uid domain.UserID) {
	unlock := v.ops.Lock(uid)
	defer unlock()

	v.mu.Lock()
	cur, ok := v.seats[uid]
	if !ok || cur.sid != sid {
		v.mu.Unlock()
		return
	}
	plan := v.computeLeaveIfNeeded(uid)
	v.applyLeave(plan)
	rooms := v.members.Len()
	v.mu.Unlock()

	v.Metrics.SetRooms(rooms)
	v.finishLeave(ctx, uid, plan)
}

// UpdateState always persists the patch. Live flags change and are
// broadcast only when sid holds the identity's seat.
func (v *VoiceRooms) UpdateState(ctx context.Context, sid core.SessionID, uid domain.UserID, patch domain.VoiceFlagsPatch) {
	var (
		server domain.ServerID
		live   bool
	)
	unlock := v.ops.Lock(uid)
	defer unlock()

	v.mu.Lock()
	if cur, ok := v.seats[uid]; ok && cur.sid == sid {
		if m, ok := v.members.Get(cur.room, sid); ok {
			m.Flags.Apply(patch)
			server = v.meta[cur.room].ServerID
			live = true
		}
	}
	v.mu.Unlock()

	v.persist(ctx, "upsert_voice_state", func(ctx context.Context) error {
		return v.store.UpsertVoiceState(ctx, uid, domain.VoiceStatePatch{VoiceFlagsPatch: patch})
	})
	if !live {
		return
	}
	v.emitter.EmitToServer(ctx, server, core.EventVoiceStateUpdate, core.VoiceStateUpdate{
		IdentityID:      uid,
		ConnectionID:    sid,
		VoiceFlagsPatch: patch,
	})
}

// State returns live flags when the identity is seated, otherwise the
// persisted ones, otherwise defaults.
func (v *VoiceRooms) State(ctx context.Context, uid domain.UserID) domain.VoiceFlags {
	v.mu.Lock()
	if cur, ok := v.seats[uid]; ok {
		if m, ok := v.members.Get(cur.room, cur.sid); ok {
			flags := m.Flags
			v.mu.Unlock()
			return flags
		}
	}
	v.mu.Unlock()
	return v.loadFlags(ctx, uid)
}

// Participants lists room ordered by join time. Empty when the room is not live.
func (v *VoiceRooms) Participants(room domain.RoomID) []core.ParticipantDTO {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.participantsLocked(room)
}

// ServerRooms returns the live rooms of a server, ordered by channel id.
func (v *VoiceRooms) ServerRooms(server domain.ServerID) []core.RoomView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]core.RoomView, 0)
	for _, id := range v.members.Rooms() {
		if v.meta[id].ServerID != server {
			continue
		}
		out = append(out, core.RoomView{ChannelID: id, ServerID: server, Participants: v.participantsLocked(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// RoomOf reports where the identity is seated and under which connection.
func (v *VoiceRooms) RoomOf(uid domain.UserID) (domain.RoomID, core.SessionID, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cur, ok := v.seats[uid]
	return cur.room, cur.sid, ok
}

func (v *VoiceRooms) RoomCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.members.Len()
}

// Authorize checks that room is a voice channel of a server uid belongs to.
// It runs outside the lock.
func (v *VoiceRooms) Authorize(ctx context.Context, uid domain.UserID, room domain.RoomID) (*domain.Channel, error) {
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.Timeout)
	defer cancel()

	ch, err := v.store.FindChannel(readCtx, room)
	if err != nil {
		v.readFailed("find_channel", uid, err)
		return nil, domain.ErrInternal
	}
	if ch == nil {
		return nil, domain.ErrNotFound
	}
	if !ch.IsVoice() {
		return nil, domain.ErrWrongChannelType
	}
	ok, err := v.store.IsServerMember(readCtx, ch.ServerID, uid)
	if err != nil {
		v.readFailed("is_server_member", uid, err)
		return nil, domain.ErrInternal
	}
	if !ok {
		return nil, domain.ErrNotAMember
	}
	return ch, nil
}

func (v *VoiceRooms) readFailed(op string, uid domain.UserID, err error) {
	log.Warn().Err(err).Str("module", "app.voice").Str("user", string(uid)).Str("op", op).Msg("validation read failed")
	v.Metrics.PersistenceError(op)
}

// loadFlags reads persisted mute/deafen. Failures fall back to defaults.
func (v *VoiceRooms) loadFlags(ctx context.Context, uid domain.UserID) domain.VoiceFlags {
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.Timeout)
	defer cancel()
	st, err := v.store.FindVoiceState(readCtx, uid)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.voice").Str("user", string(uid)).Msg("voice state read failed, using defaults")
		v.Metrics.PersistenceError("find_voice_state")
		return domain.VoiceFlags{}
	}
	if st == nil {
		return domain.VoiceFlags{}
	}
	return domain.VoiceFlags{Mute: st.Mute, Deafen: st.Deafen}
}

// computeLeaveIfNeeded captures the identity's current seat, if any.
// Caller holds v.mu.
func (v *VoiceRooms) computeLeaveIfNeeded(uid domain.UserID) *leavePlan {
	cur, ok := v.seats[uid]
	if !ok {
		return nil
	}
	m, _ := v.members.Get(cur.room, cur.sid)
	return &leavePlan{room: cur.room, server: v.meta[cur.room].ServerID, sid: cur.sid, member: m}
}

// Caller holds v.mu.
func (v *VoiceRooms) applyLeave(p *leavePlan) {
	if p == nil {
		return
	}
	v.members.Remove(p.room, p.sid)
	if !v.members.Has(p.room) {
		delete(v.meta, p.room)
		log.Debug().Str("module", "app.voice").Str("room", string(p.room)).Msg("room destroyed")
	}
	if p.member != nil {
		delete(v.seats, p.member.User.ID)
	}
}

// Caller holds v.mu.
func (v *VoiceRooms) applyJoin(ch domain.Channel, sid core.SessionID, m *domain.Member) {
	if v.members.Add(ch.ID, sid, m) {
		v.meta[ch.ID] = ch
		log.Debug().Str("module", "app.voice").Str("room", string(ch.ID)).Msg("room created")
	}
	v.seats[m.User.ID] = seat{room: ch.ID, sid: sid}
}

// finishLeave runs the side effects of an applied leave, outside the lock.
func (v *VoiceRooms) finishLeave(ctx context.Context, uid domain.UserID, p *leavePlan) {
	v.persist(ctx, "delete_voice_state", func(ctx context.Context) error {
		return v.store.DeleteVoiceState(ctx, uid)
	})
	v.emitter.EmitToServer(ctx, p.server, core.EventVoiceUserLeft, core.VoiceUserLeft{
		ChannelID:    p.room,
		IdentityID:   uid,
		ConnectionID: p.sid,
	})
	v.Metrics.VoiceLeft()
	log.Info().Str("module", "app.voice").Str("sid", string(p.sid)).Str("user", string(uid)).Str("room", string(p.room)).Msg("left voice room")
}

// persist is a best-effort write with a bounded timeout. Errors are logged
// and counted, never returned.
func (v *VoiceRooms) persist(ctx context.Context, op string, fn func(context.Context) error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.Timeout)
	defer cancel()
	if err := fn(writeCtx); err != nil {
		log.Warn().Err(err).Str("module", "app.voice").Str("op", op).Msg("persistence write failed")
		v.Metrics.PersistenceError(op)
	}
}

// Caller holds v.mu.
func (v *VoiceRooms) participantsLocked(room domain.RoomID) []core.ParticipantDTO {
	out := make([]core.ParticipantDTO, 0, v.members.Count(room))
	v.members.Each(room, func(sid core.SessionID, m *domain.Member) bool {
		out = append(out, toDTO(room, sid, m))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func toDTO(room domain.RoomID, sid core.SessionID, m *domain.Member) core.ParticipantDTO {
	return core.ParticipantDTO{
		ChannelID:     room,
		IdentityID:    m.User.ID,
		Username:      m.User.Username,
		Discriminator: m.User.Discriminator,
		Avatar:        m.User.Avatar,
		ConnectionID:  sid,
		Mute:          m.Flags.Mute,
		Deafen:        m.Flags.Deafen,
		Speaking:      m.Flags.Speaking,
		JoinedAt:      m.JoinedAt,
	}
}
