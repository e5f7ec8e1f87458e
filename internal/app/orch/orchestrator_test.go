package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/core/mocks"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/dkeye/parley/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"
)

type testConn struct {
	mu     sync.Mutex
	types  []string
	about  []domain.UserID
	closed bool
}

func (c *testConn) TrySend(f core.Frame) error {
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(f, &ev); err != nil {
		return err
	}
	var who struct {
		IdentityID domain.UserID `json:"identityId"`
	}
	_ = json.Unmarshal(ev.Data, &who)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, ev.Type)
	c.about = append(c.about, who.IdentityID)
	return nil
}

// presenceOf lists the presence events received about uid, in order.
func (c *testConn) presenceOf(uid domain.UserID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for i, typ := range c.types {
		if c.about[i] == uid && (typ == core.EventUserOnline || typ == core.EventUserOffline) {
			out = append(out, typ)
		}
	}
	return out
}

func (c *testConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *testConn) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.types...)
}

func (c *testConn) count(event string) int {
	n := 0
	for _, typ := range c.seen() {
		if typ == event {
			n++
		}
	}
	return n
}

var (
	alice = domain.User{ID: "u-alice", Username: "alice", Discriminator: "0001"}
	bob   = domain.User{ID: "u-bob", Username: "bob", Discriminator: "0002"}
	carol = domain.User{ID: "u-carol", Username: "carol", Discriminator: "0003"}
	dave  = domain.User{ID: "u-dave", Username: "dave", Discriminator: "0004"}
)

func newOrch(t *testing.T) (*Orchestrator, *store.Memory) {
	t.Helper()
	m := seededMemory(t)
	return New(m, Options{}), m
}

func seededMemory(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	fx := store.Fixture{
		Users: []store.UserFixture{
			{ID: alice.ID, Username: "alice", Discriminator: "0001"},
			{ID: bob.ID, Username: "bob", Discriminator: "0002"},
			{ID: carol.ID, Username: "carol", Discriminator: "0003"},
			{ID: dave.ID, Username: "dave", Discriminator: "0004"},
		},
		Servers: []store.ServerFixture{{
			ID: "s1", Name: "lobby", Owner: alice.ID,
			Members: []domain.UserID{alice.ID, bob.ID, carol.ID},
			Channels: []store.ChannelFixture{
				{ID: "r1", Name: "r1", Type: domain.ChannelVoice, Capacity: 2},
				{ID: "r2", Name: "r2", Type: domain.ChannelVoice},
			},
		}},
	}
	if err := store.Apply(context.Background(), m, fx); err != nil {
		t.Fatal(err)
	}
	return m
}

func connect(o *Orchestrator, sid core.SessionID, u domain.User) *testConn {
	c := &testConn{}
	o.OnConnect(context.Background(), sid, u, c)
	return c
}

func TestPresence_TransitionsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	o, m := newOrch(t)
	watcher := connect(o, "b1", bob)

	connect(o, "a1", alice)
	connect(o, "a2", alice)
	if n := watcher.count(core.EventUserOnline); n != 1 {
		t.Fatalf("user:online seen %d times", n)
	}
	if m.Status(alice.ID) != domain.StatusOnline {
		t.Errorf("status = %q", m.Status(alice.ID))
	}

	o.OnDisconnect(ctx, "a1")
	if n := watcher.count(core.EventUserOffline); n != 0 {
		t.Fatal("offline announced while a connection remains")
	}
	o.OnDisconnect(ctx, "a2")
	o.OnDisconnect(ctx, "a2")
	if n := watcher.count(core.EventUserOffline); n != 1 {
		t.Fatalf("user:offline seen %d times", n)
	}
	if m.Status(alice.ID) != domain.StatusOffline {
		t.Errorf("status = %q", m.Status(alice.ID))
	}
}

func TestVoice_CapacityAndAbruptDrop(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrch(t)
	connect(o, "a1", alice)
	b := connect(o, "b1", bob)
	connect(o, "c1", carol)

	if _, err := o.JoinVoice(ctx, "a1", "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.JoinVoice(ctx, "b1", "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.JoinVoice(ctx, "c1", "r1"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("carol err = %v", err)
	}

	o.OnDisconnect(ctx, "a1")

	list, err := o.ChannelParticipants(ctx, bob.ID, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].IdentityID != bob.ID {
		t.Fatalf("participants = %+v", list)
	}
	if b.count(core.EventVoiceUserLeft) != 1 {
		t.Errorf("bob saw %v", b.seen())
	}

	// The freed seat is usable.
	if _, err := o.JoinVoice(ctx, "c1", "r1"); err != nil {
		t.Errorf("carol rejoin: %v", err)
	}
}

func TestVoice_UnknownConnection(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrch(t)

	if _, err := o.JoinVoice(ctx, "ghost", "r1"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("join: %v", err)
	}
	if err := o.LeaveVoice(ctx, "ghost"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("leave: %v", err)
	}
	if err := o.Signal("ghost", bob.ID, json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("signal: %v", err)
	}
	if _, _, err := o.WhoAmI("ghost"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("whoami: %v", err)
	}
}

func TestVoice_BadRequests(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrch(t)
	connect(o, "a1", alice)

	bad := domain.NewError(domain.KindBadRequest, "")
	if _, err := o.JoinVoice(ctx, "a1", ""); !errors.Is(err, bad) {
		t.Errorf("join: %v", err)
	}
	if err := o.UpdateVoiceState(ctx, "a1", domain.VoiceFlagsPatch{}); !errors.Is(err, bad) {
		t.Errorf("update: %v", err)
	}
	if err := o.Signal("a1", "", nil); !errors.Is(err, bad) {
		t.Errorf("signal: %v", err)
	}
	if err := o.Subscribe("a1", ""); !errors.Is(err, bad) {
		t.Errorf("subscribe: %v", err)
	}
}

func TestWhoAmI_ReportsSeatOfThisConnectionOnly(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrch(t)
	connect(o, "a1", alice)
	connect(o, "a2", alice)
	_, _ = o.JoinVoice(ctx, "a1", "r2")

	u, room, err := o.WhoAmI("a1")
	if err != nil || u.ID != alice.ID || room != "r2" {
		t.Errorf("a1 = %v %q %v", u.ID, room, err)
	}
	if _, room, _ := o.WhoAmI("a2"); room != "" {
		t.Errorf("a2 room = %q", room)
	}
}

func TestSignal_RelaysToTarget(t *testing.T) {
	o, _ := newOrch(t)
	connect(o, "a1", alice)
	b := connect(o, "b1", bob)

	if err := o.Signal("a1", bob.ID, json.RawMessage(`{"type":"offer","sdp":"v=0"}`)); err != nil {
		t.Fatal(err)
	}
	if b.count(core.EventVoiceSignal) != 1 {
		t.Errorf("bob saw %v", b.seen())
	}
	if err := o.Signal("a1", carol.ID, json.RawMessage(`{}`)); err != nil {
		t.Errorf("offline target is not an error: %v", err)
	}
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrch(t)
	connect(o, "a1", alice)
	connect(o, "d1", dave)
	_, _ = o.JoinVoice(ctx, "a1", "r2")

	online, err := o.ServerOnline(ctx, bob.ID, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0].ID != alice.ID {
		t.Errorf("server online = %+v", online)
	}
	if len(o.OnlineUsers()) != 2 {
		t.Errorf("online = %+v", o.OnlineUsers())
	}

	rooms, err := o.ServerRooms(ctx, bob.ID, "s1")
	if err != nil || len(rooms) != 1 || rooms[0].ChannelID != "r2" {
		t.Errorf("rooms = %+v, %v", rooms, err)
	}
	if _, err := o.ServerRooms(ctx, dave.ID, "s1"); !errors.Is(err, domain.ErrNotAMember) {
		t.Errorf("outsider rooms err = %v", err)
	}
	if _, err := o.ChannelParticipants(ctx, dave.ID, "r2"); !errors.Is(err, domain.ErrNotAMember) {
		t.Errorf("outsider participants err = %v", err)
	}
}

func persistenceErrors(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "parley_persistence_errors_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestJoin_PersistenceWriteFailuresAreSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	reg := prometheus.NewRegistry()
	o := New(st, Options{Metrics: metrics.NewCollector(reg)})
	errDB := errors.New("database is locked")

	st.EXPECT().SetUserStatus(gomock.Any(), alice.ID, domain.StatusOnline).Return(errDB)
	st.EXPECT().ListServerIDsForUser(gomock.Any(), alice.ID).Return([]domain.ServerID{"s1"}, nil)
	st.EXPECT().ListServerMemberIDs(gomock.Any(), domain.ServerID("s1")).Return([]domain.UserID{alice.ID}, nil).AnyTimes()
	st.EXPECT().FindChannel(gomock.Any(), domain.RoomID("r1")).
		Return(&domain.Channel{ID: "r1", ServerID: "s1", Type: domain.ChannelVoice}, nil)
	st.EXPECT().IsServerMember(gomock.Any(), domain.ServerID("s1"), alice.ID).Return(true, nil)
	st.EXPECT().FindVoiceState(gomock.Any(), alice.ID).Return(nil, errDB)
	st.EXPECT().UpsertVoiceState(gomock.Any(), alice.ID, gomock.Any()).Return(errDB)

	a := connect(o, "a1", alice)
	list, err := o.JoinVoice(context.Background(), "a1", "r1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(list) != 1 || list[0].Mute {
		t.Errorf("list = %+v", list)
	}
	if a.count(core.EventVoiceUserJoined) != 1 {
		t.Errorf("alice saw %v", a.seen())
	}

	got := persistenceErrors(t, reg)
	for _, op := range []string{"set_user_status", "find_voice_state", "upsert_voice_state"} {
		if got[op] != 1 {
			t.Errorf("%s errors = %v", op, got[op])
		}
	}
}

func TestJoin_ValidationReadFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	o := New(st, Options{})

	st.EXPECT().SetUserStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	st.EXPECT().ListServerIDsForUser(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().FindChannel(gomock.Any(), domain.RoomID("r1")).Return(nil, errors.New("timeout"))

	connect(o, "a1", alice)
	_, err := o.JoinVoice(context.Background(), "a1", "r1")
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("err = %v", err)
	}
	if o.Voice.RoomCount() != 0 {
		t.Error("no room expected")
	}
}

// gatedStatus holds the first offline write until release is closed.
type gatedStatus struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStatus) SetUserStatus(ctx context.Context, id domain.UserID, status string) error {
	if status == domain.StatusOffline {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Memory.SetUserStatus(ctx, id, status)
}

func TestPresence_ReconnectDuringOfflineEndsOnline(t *testing.T) {
	ctx := context.Background()
	m := seededMemory(t)
	gate := &gatedStatus{Memory: m, entered: make(chan struct{}), release: make(chan struct{})}
	o := New(gate, Options{})
	watcher := connect(o, "b1", bob)
	connect(o, "a1", alice)

	dropped := make(chan struct{})
	go func() {
		defer close(dropped)
		o.OnDisconnect(ctx, "a1")
	}()
	<-gate.entered

	reloaded := make(chan struct{})
	go func() {
		defer close(reloaded)
		connect(o, "a2", alice)
	}()
	// Let the new tab reach the registry while the old one is going offline.
	time.Sleep(20 * time.Millisecond)
	close(gate.release)
	<-dropped
	<-reloaded

	want := []string{core.EventUserOnline, core.EventUserOffline, core.EventUserOnline}
	if got := watcher.presenceOf(alice.ID); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("presence = %v, want %v", got, want)
	}
	if !o.Registry.IsOnline(alice.ID) {
		t.Error("alice should be online")
	}
	if m.Status(alice.ID) != domain.StatusOnline {
		t.Errorf("persisted status = %q", m.Status(alice.ID))
	}
}

func TestOrchestrator_ConcurrentSessionsSettle(t *testing.T) {
	ctx := context.Background()
	o, m := newOrch(t)
	watcher := connect(o, "c-watch", carol)
	connect(o, "b-keep", bob)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		for _, u := range []domain.User{alice, bob} {
			wg.Add(1)
			go func(w int, u domain.User) {
				defer wg.Done()
				for n := 0; n < 25; n++ {
					sid := core.SessionID(fmt.Sprintf("%s-%d-%d", u.Username, w, n))
					o.OnConnect(ctx, sid, u, &testConn{})
					room := domain.RoomID("r1")
					if (w+n)%2 == 1 {
						room = "r2"
					}
					if _, err := o.JoinVoice(ctx, sid, room); err != nil && !errors.Is(err, domain.ErrRoomFull) {
						t.Errorf("%s join %s: %v", sid, room, err)
					}
					if n%3 == 0 {
						_ = o.LeaveVoice(ctx, sid)
					}
					o.OnDisconnect(ctx, sid)
				}
			}(w, u)
		}
	}
	wg.Wait()

	// alice came and went many times: strictly alternating, ending offline.
	got := watcher.presenceOf(alice.ID)
	if len(got) < 2 || len(got)%2 != 0 {
		t.Fatalf("alice presence = %v", got)
	}
	for i, typ := range got {
		want := core.EventUserOnline
		if i%2 == 1 {
			want = core.EventUserOffline
		}
		if typ != want {
			t.Fatalf("alice presence[%d] = %s in %v", i, typ, got)
		}
	}
	// bob kept one connection throughout: exactly one transition.
	if got := watcher.presenceOf(bob.ID); fmt.Sprint(got) != fmt.Sprint([]string{core.EventUserOnline}) {
		t.Errorf("bob presence = %v", got)
	}

	if o.Registry.IsOnline(alice.ID) || !o.Registry.IsOnline(bob.ID) {
		t.Error("registry disagrees with the connections left open")
	}
	if m.Status(alice.ID) != domain.StatusOffline || m.Status(bob.ID) != domain.StatusOnline {
		t.Errorf("status alice=%q bob=%q", m.Status(alice.ID), m.Status(bob.ID))
	}
	if conns, users := o.Registry.Count(); conns != 2 || users != 2 {
		t.Errorf("registry count = %d/%d", conns, users)
	}
	if n := o.Voice.RoomCount(); n != 0 {
		t.Errorf("%d rooms survive with every voice connection closed", n)
	}
	for _, uid := range []domain.UserID{alice.ID, bob.ID} {
		if _, _, ok := o.Voice.RoomOf(uid); ok {
			t.Errorf("%s still seated", uid)
		}
	}
}
