package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dkeye/parley/internal/domain"
)

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "parley.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seed(t *testing.T, s Seeder) {
	t.Helper()
	f := Fixture{
		Users: []UserFixture{
			{ID: "u1", Username: "alice", Discriminator: "0001"},
			{ID: "u2", Username: "bob", Discriminator: "0002"},
		},
		Servers: []ServerFixture{{
			ID: "s1", Name: "guild", Owner: "u1",
			Members: []domain.UserID{"u1", "u2"},
			Channels: []ChannelFixture{
				{ID: "v1", Name: "lounge", Type: domain.ChannelVoice, Capacity: 2},
				{ID: "t1", Name: "general", Type: domain.ChannelText},
			},
		}},
	}
	if err := Apply(context.Background(), s, f); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSQLStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	seed(t, s)

	u, err := s.FindUser(ctx, "u1")
	if err != nil || u == nil {
		t.Fatalf("FindUser = %v, %v", u, err)
	}
	if u.Username != "alice" || u.Discriminator != "0001" {
		t.Errorf("user = %+v", u)
	}
	if u, err := s.FindUser(ctx, "nobody"); err != nil || u != nil {
		t.Errorf("missing user = %v, %v; want nil, nil", u, err)
	}

	ch, err := s.FindChannel(ctx, "v1")
	if err != nil || ch == nil {
		t.Fatalf("FindChannel = %v, %v", ch, err)
	}
	if !ch.IsVoice() || ch.Capacity != 2 || ch.ServerID != "s1" {
		t.Errorf("channel = %+v", ch)
	}
	if ch, err := s.FindChannel(ctx, "nope"); err != nil || ch != nil {
		t.Errorf("missing channel = %v, %v", ch, err)
	}

	ok, err := s.IsServerMember(ctx, "s1", "u2")
	if err != nil || !ok {
		t.Errorf("IsServerMember(u2) = %v, %v", ok, err)
	}
	ok, err = s.IsServerMember(ctx, "s1", "u3")
	if err != nil || ok {
		t.Errorf("IsServerMember(u3) = %v, %v", ok, err)
	}

	servers, err := s.ListServerIDsForUser(ctx, "u1")
	if err != nil || len(servers) != 1 || servers[0] != "s1" {
		t.Errorf("ListServerIDsForUser = %v, %v", servers, err)
	}
	members, err := s.ListServerMemberIDs(ctx, "s1")
	if err != nil || len(members) != 2 || members[0] != "u1" || members[1] != "u2" {
		t.Errorf("ListServerMemberIDs = %v, %v", members, err)
	}

	if err := s.SetUserStatus(ctx, "u1", domain.StatusOnline); err != nil {
		t.Errorf("SetUserStatus: %v", err)
	}
}

func TestSQLStore_VoiceStateUpsertKeepsAbsentFields(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	seed(t, s)

	tr := true
	if err := s.UpsertVoiceState(ctx, "u1", domain.VoiceStatePatch{VoiceFlagsPatch: domain.VoiceFlagsPatch{Mute: &tr}}); err != nil {
		t.Fatalf("upsert mute: %v", err)
	}
	room := domain.RoomID("v1")
	if err := s.UpsertVoiceState(ctx, "u1", domain.VoiceStatePatch{ChannelID: &room, VoiceFlagsPatch: domain.VoiceFlagsPatch{Deafen: &tr}}); err != nil {
		t.Fatalf("upsert deafen: %v", err)
	}

	st, err := s.FindVoiceState(ctx, "u1")
	if err != nil || st == nil {
		t.Fatalf("FindVoiceState = %v, %v", st, err)
	}
	if !st.Mute || !st.Deafen || st.Speaking || st.ChannelID != "v1" {
		t.Errorf("state = %+v", st)
	}

	if err := s.DeleteVoiceState(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteVoiceState(ctx, "u1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	if st, err := s.FindVoiceState(ctx, "u1"); err != nil || st != nil {
		t.Errorf("after delete = %v, %v", st, err)
	}
}

func TestSQLStore_MigrateTwice(t *testing.T) {
	s := newSQLite(t)
	if err := s.Migrate(); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	if got := pg.rebind(`SELECT 1 WHERE a = ? AND b = ?`); got != `SELECT 1 WHERE a = $1 AND b = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SQLStore{driver: DriverSQLite}
	if got := lite.rebind(`a = ?`); got != `a = ?` {
		t.Errorf("sqlite rebind = %q", got)
	}
}
