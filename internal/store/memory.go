package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/parley/internal/domain"
)

// Memory is a process-local store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[domain.UserID]domain.User
	statuses map[domain.UserID]string
	servers  map[domain.ServerID]string
	members  map[domain.ServerID]map[domain.UserID]struct{}
	channels map[domain.RoomID]domain.Channel
	voice    map[domain.UserID]domain.VoiceState
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[domain.UserID]domain.User),
		statuses: make(map[domain.UserID]string),
		servers:  make(map[domain.ServerID]string),
		members:  make(map[domain.ServerID]map[domain.UserID]struct{}),
		channels: make(map[domain.RoomID]domain.Channel),
		voice:    make(map[domain.UserID]domain.VoiceState),
	}
}

func (m *Memory) FindUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) SetUserStatus(_ context.Context, id domain.UserID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; ok {
		m.statuses[id] = status
	}
	return nil
}

// Status returns the last status written for id.
func (m *Memory) Status(id domain.UserID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[id]
}

func (m *Memory) FindChannel(_ context.Context, id domain.RoomID) (*domain.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (m *Memory) IsServerMember(_ context.Context, server domain.ServerID, user domain.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[server][user]
	return ok, nil
}

func (m *Memory) ListServerIDsForUser(_ context.Context, user domain.UserID) ([]domain.ServerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ServerID, 0)
	for sid, members := range m.members {
		if _, ok := members[user]; ok {
			out = append(out, sid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) ListServerMemberIDs(_ context.Context, server domain.ServerID) ([]domain.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.UserID, 0, len(m.members[server]))
	for uid := range m.members[server] {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) FindVoiceState(_ context.Context, user domain.UserID) (*domain.VoiceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.voice[user]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Memory) UpsertVoiceState(_ context.Context, user domain.UserID, patch domain.VoiceStatePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.voice[user]
	if !ok {
		st = domain.VoiceState{UserID: user}
	}
	if patch.ChannelID != nil {
		st.ChannelID = *patch.ChannelID
	}
	st.Apply(patch.VoiceFlagsPatch)
	m.voice[user] = st
	return nil
}

func (m *Memory) DeleteVoiceState(_ context.Context, user domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.voice, user)
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) CreateServer(_ context.Context, id domain.ServerID, name string, _ domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[id] = name
	return nil
}

func (m *Memory) AddServerMember(_ context.Context, server domain.ServerID, user domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[server] == nil {
		m.members[server] = make(map[domain.UserID]struct{})
	}
	m.members[server][user] = struct{}{}
	return nil
}

func (m *Memory) CreateChannel(_ context.Context, ch domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
	return nil
}
