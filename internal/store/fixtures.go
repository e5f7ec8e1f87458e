package store

import (
	"context"
	"fmt"

	"github.com/dkeye/parley/internal/domain"
)

// Seeder writes the rows the realtime core only reads. Server and channel
// CRUD lives elsewhere; this exists for local setups and tests.
type Seeder interface {
	CreateUser(ctx context.Context, u domain.User) error
	CreateServer(ctx context.Context, id domain.ServerID, name string, owner domain.UserID) error
	AddServerMember(ctx context.Context, server domain.ServerID, user domain.UserID) error
	CreateChannel(ctx context.Context, ch domain.Channel) error
}

type ServerFixture struct {
	ID       domain.ServerID  `mapstructure:"id"`
	Name     string           `mapstructure:"name"`
	Owner    domain.UserID    `mapstructure:"owner"`
	Members  []domain.UserID  `mapstructure:"members"`
	Channels []ChannelFixture `mapstructure:"channels"`
}

type ChannelFixture struct {
	ID       domain.RoomID      `mapstructure:"id"`
	Name     string             `mapstructure:"name"`
	Type     domain.ChannelType `mapstructure:"type"`
	Capacity int                `mapstructure:"capacity"`
}

type UserFixture struct {
	ID            domain.UserID `mapstructure:"id"`
	Username      string        `mapstructure:"username"`
	Discriminator string        `mapstructure:"discriminator"`
	Avatar        string        `mapstructure:"avatar"`
}

// Fixture is a seed document, usually decoded from yaml.
type Fixture struct {
	Users   []UserFixture   `mapstructure:"users"`
	Servers []ServerFixture `mapstructure:"servers"`
}

// Apply writes f in dependency order.
func Apply(ctx context.Context, s Seeder, f Fixture) error {
	for _, u := range f.Users {
		user, err := domain.NewUser(u.ID, u.Username, u.Discriminator, u.Avatar)
		if err != nil {
			return fmt.Errorf("user %q: %w", u.ID, err)
		}
		if err := s.CreateUser(ctx, *user); err != nil {
			return err
		}
	}
	for _, srv := range f.Servers {
		if err := s.CreateServer(ctx, srv.ID, srv.Name, srv.Owner); err != nil {
			return err
		}
		for _, uid := range srv.Members {
			if err := s.AddServerMember(ctx, srv.ID, uid); err != nil {
				return err
			}
		}
		for _, ch := range srv.Channels {
			typ := ch.Type
			if typ == "" {
				typ = domain.ChannelVoice
			}
			err := s.CreateChannel(ctx, domain.Channel{
				ID:       ch.ID,
				ServerID: srv.ID,
				Name:     ch.Name,
				Type:     typ,
				Capacity: ch.Capacity,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, username, discriminator, avatar) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username, discriminator = excluded.discriminator, avatar = excluded.avatar`),
		u.ID, u.Username, u.Discriminator, u.Avatar)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLStore) CreateServer(ctx context.Context, id domain.ServerID, name string, owner domain.UserID) error {
	var ownerArg any
	if owner != "" {
		ownerArg = string(owner)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO servers (id, name, owner_id) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`), id, name, ownerArg)
	if err != nil {
		return fmt.Errorf("create server %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) AddServerMember(ctx context.Context, server domain.ServerID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO server_members (server_id, user_id) VALUES (?, ?) ON CONFLICT (server_id, user_id) DO NOTHING`), server, user)
	if err != nil {
		return fmt.Errorf("add member %s/%s: %w", server, user, err)
	}
	return nil
}

func (s *SQLStore) CreateChannel(ctx context.Context, ch domain.Channel) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO channels (id, server_id, name, type, capacity) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, type = excluded.type, capacity = excluded.capacity`),
		ch.ID, ch.ServerID, ch.Name, ch.Type, ch.Capacity)
	if err != nil {
		return fmt.Errorf("create channel %s: %w", ch.ID, err)
	}
	return nil
}
