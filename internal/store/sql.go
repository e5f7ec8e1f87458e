// Package store persists users, servers, channels and the voice state
// mirror. The realtime core reads it for validation only.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dkeye/parley/internal/domain"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// SQLStore serves both sqlite and postgres. Queries are written with '?'
// placeholders and rebound for postgres.
type SQLStore struct {
	db         *sql.DB
	driver     string
	migrateURL string
}

// DefaultSQLitePath returns the database file under the XDG data dir,
// creating parent directories.
func DefaultSQLitePath() (string, error) {
	return xdg.DataFile("parley/parley.sqlite")
}

// Open connects to driver at dsn. For sqlite dsn is a file path; empty means
// DefaultSQLitePath. For postgres dsn is a connection URL.
func Open(driver, dsn string) (*SQLStore, error) {
	var connStr, migrateURL string
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			p, err := DefaultSQLitePath()
			if err != nil {
				return nil, fmt.Errorf("resolve sqlite path: %w", err)
			}
			dsn = p
		}
		connStr = "file:" + dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		migrateURL = "sqlite://" + dsn
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres requires database.dsn")
		}
		connStr = dsn
		migrateURL = dsn
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{db: db, driver: driver, migrateURL: migrateURL}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Migrate() error { return RunMigrations(s.migrateURL) }

// rebind turns '?' placeholders into '$n' for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) FindUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, username, discriminator, avatar FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Username, &u.Discriminator, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &u, nil
}

func (s *SQLStore) SetUserStatus(ctx context.Context, id domain.UserID, status string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET status = ? WHERE id = ?`), status, id); err != nil {
		return fmt.Errorf("set user status %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) FindChannel(ctx context.Context, id domain.RoomID) (*domain.Channel, error) {
	var ch domain.Channel
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, server_id, name, type, capacity FROM channels WHERE id = ?`), id).
		Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find channel %s: %w", id, err)
	}
	return &ch, nil
}

func (s *SQLStore) IsServerMember(ctx context.Context, server domain.ServerID, user domain.UserID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?`), server, user).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership %s/%s: %w", server, user, err)
	}
	return true, nil
}

func (s *SQLStore) ListServerIDsForUser(ctx context.Context, user domain.UserID) ([]domain.ServerID, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT server_id FROM server_members WHERE user_id = ? ORDER BY server_id`), user)
	if err != nil {
		return nil, fmt.Errorf("list servers of %s: %w", user, err)
	}
	defer rows.Close()
	out := make([]domain.ServerID, 0)
	for rows.Next() {
		var id domain.ServerID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan server id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListServerMemberIDs(ctx context.Context, server domain.ServerID) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT user_id FROM server_members WHERE server_id = ? ORDER BY user_id`), server)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", server, err)
	}
	defer rows.Close()
	out := make([]domain.UserID, 0)
	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) FindVoiceState(ctx context.Context, user domain.UserID) (*domain.VoiceState, error) {
	var (
		st      domain.VoiceState
		channel sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT user_id, channel_id, mute, deafen, speaking FROM voice_states WHERE user_id = ?`), user).
		Scan(&st.UserID, &channel, &st.Mute, &st.Deafen, &st.Speaking)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find voice state %s: %w", user, err)
	}
	st.ChannelID = domain.RoomID(channel.String)
	return &st, nil
}

// UpsertVoiceState inserts a row with defaults for missing fields, or
// updates only the fields present in patch.
func (s *SQLStore) UpsertVoiceState(ctx context.Context, user domain.UserID, patch domain.VoiceStatePatch) error {
	var channel sql.NullString
	if patch.ChannelID != nil && *patch.ChannelID != "" {
		channel = sql.NullString{String: string(*patch.ChannelID), Valid: true}
	}
	set := []string{"updated_at = excluded.updated_at"}
	if patch.ChannelID != nil {
		set = append(set, "channel_id = excluded.channel_id")
	}
	if patch.Mute != nil {
		set = append(set, "mute = excluded.mute")
	}
	if patch.Deafen != nil {
		set = append(set, "deafen = excluded.deafen")
	}
	if patch.Speaking != nil {
		set = append(set, "speaking = excluded.speaking")
	}
	q := `INSERT INTO voice_states (user_id, channel_id, mute, deafen, speaking, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET ` + strings.Join(set, ", ")

	_, err := s.db.ExecContext(ctx, s.rebind(q), user, channel,
		deref(patch.Mute), deref(patch.Deafen), deref(patch.Speaking))
	if err != nil {
		return fmt.Errorf("upsert voice state %s: %w", user, err)
	}
	return nil
}

// DeleteVoiceState removes the row. A missing row is not an error.
func (s *SQLStore) DeleteVoiceState(ctx context.Context, user domain.UserID) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM voice_states WHERE user_id = ?`), user); err != nil {
		return fmt.Errorf("delete voice state %s: %w", user, err)
	}
	return nil
}

func deref(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
