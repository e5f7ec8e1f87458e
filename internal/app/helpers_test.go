package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/dkeye/parley/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type frameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) events(t *testing.T) []frameEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frameEvent, 0, len(c.frames))
	for _, f := range c.frames {
		var ev frameEvent
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	evs := c.events(t)
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func (c *fakeConn) count(t *testing.T, event string) int {
	n := 0
	for _, typ := range c.types(t) {
		if typ == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// countingRecorder keeps the counters tests assert on.
type countingRecorder struct {
	metrics.Nop
	mu          sync.Mutex
	persistErrs map[string]int
	rejected    map[string]int
	joins       int
	leaves      int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{persistErrs: map[string]int{}, rejected: map[string]int{}}
}

func (r *countingRecorder) PersistenceError(op string) {
	r.mu.Lock()
	r.persistErrs[op]++
	r.mu.Unlock()
}

func (r *countingRecorder) JoinRejected(kind string) {
	r.mu.Lock()
	r.rejected[kind]++
	r.mu.Unlock()
}

func (r *countingRecorder) VoiceJoined() {
	r.mu.Lock()
	r.joins++
	r.mu.Unlock()
}

func (r *countingRecorder) VoiceLeft() {
	r.mu.Lock()
	r.leaves++
	r.mu.Unlock()
}

var (
	alice = domain.User{ID: "u-alice", Username: "alice", Discriminator: "0001"}
	bob   = domain.User{ID: "u-bob", Username: "bob", Discriminator: "0002"}
	carol = domain.User{ID: "u-carol", Username: "carol", Discriminator: "0003"}
	dave  = domain.User{ID: "u-dave", Username: "dave", Discriminator: "0004"}
)

// seededStore: s1 has alice, bob, carol; s2 has alice only; dave belongs nowhere.
func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	fx := store.Fixture{
		Users: []store.UserFixture{
			{ID: alice.ID, Username: alice.Username, Discriminator: alice.Discriminator},
			{ID: bob.ID, Username: bob.Username, Discriminator: bob.Discriminator},
			{ID: carol.ID, Username: carol.Username, Discriminator: carol.Discriminator},
			{ID: dave.ID, Username: dave.Username, Discriminator: dave.Discriminator},
		},
		Servers: []store.ServerFixture{
			{
				ID: "s1", Name: "one", Owner: alice.ID,
				Members: []domain.UserID{alice.ID, bob.ID, carol.ID},
				Channels: []store.ChannelFixture{
					{ID: "c-small", Name: "small", Type: domain.ChannelVoice, Capacity: 2},
					{ID: "c-big", Name: "big", Type: domain.ChannelVoice},
					{ID: "c-text", Name: "text", Type: domain.ChannelText},
				},
			},
			{
				ID: "s2", Name: "two", Owner: alice.ID,
				Members:  []domain.UserID{alice.ID},
				Channels: []store.ChannelFixture{{ID: "c-two", Name: "two", Type: domain.ChannelVoice}},
			},
		},
	}
	m := store.NewMemory()
	if err := store.Apply(context.Background(), m, fx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return m
}

type testEnv struct {
	store *store.Memory
	reg   *Registry
	fan   *Fanout
	voice *VoiceRooms
	rec   *countingRecorder
	conns map[core.SessionID]*fakeConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := seededStore(t)
	rec := newCountingRecorder()
	reg := NewRegistry()
	fan := NewFanout(reg, st)
	fan.Metrics = rec
	voice := NewVoiceRooms(st, fan)
	voice.Metrics = rec

	var tick int64
	voice.now = func() time.Time {
		tick++
		return time.Unix(1_700_000_000+tick, 0)
	}
	return &testEnv{store: st, reg: reg, fan: fan, voice: voice, rec: rec, conns: map[core.SessionID]*fakeConn{}}
}

func (e *testEnv) connect(sid core.SessionID, u domain.User) *fakeConn {
	c := &fakeConn{}
	e.reg.Register(sid, u, c)
	e.conns[sid] = c
	return c
}

// failingDirectory breaks the server lookups of an otherwise healthy store.
type failingDirectory struct {
	*store.Memory
}

var errLookup = errors.New("lookup failed")

func (failingDirectory) ListServerIDsForUser(context.Context, domain.UserID) ([]domain.ServerID, error) {
	return nil, errLookup
}

func (failingDirectory) ListServerMemberIDs(context.Context, domain.ServerID) ([]domain.UserID, error) {
	return nil, errLookup
}

func (failingDirectory) SetUserStatus(context.Context, domain.UserID, string) error {
	return errLookup
}
