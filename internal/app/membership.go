package app

import "github.com/dkeye/parley/internal/core"

// MembershipStore maps a room key to the participants in it, keyed by
// connection id. A room entry exists only while it has members.
//
// It is not safe for concurrent use; the owner serializes access.
type MembershipStore[K comparable, M any] struct {
	rooms map[K]map[core.SessionID]M
}

func NewMembershipStore[K comparable, M any]() *MembershipStore[K, M] {
	return &MembershipStore[K, M]{rooms: make(map[K]map[core.SessionID]M)}
}

// Add inserts or replaces the record for sid. It reports whether the room
// was created by this call.
func (s *MembershipStore[K, M]) Add(room K, sid core.SessionID, m M) (created bool) {
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[core.SessionID]M)
		s.rooms[room] = members
	}
	members[sid] = m
	return !ok
}

// Remove deletes sid from room and drops the room when it becomes empty.
func (s *MembershipStore[K, M]) Remove(room K, sid core.SessionID) (M, bool) {
	var zero M
	members, ok := s.rooms[room]
	if !ok {
		return zero, false
	}
	m, ok := members[sid]
	if !ok {
		return zero, false
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
	return m, true
}

func (s *MembershipStore[K, M]) Get(room K, sid core.SessionID) (M, bool) {
	m, ok := s.rooms[room][sid]
	return m, ok
}

// Each calls fn for every member of room until fn returns false.
func (s *MembershipStore[K, M]) Each(room K, fn func(sid core.SessionID, m M) bool) {
	for sid, m := range s.rooms[room] {
		if !fn(sid, m) {
			return
		}
	}
}

func (s *MembershipStore[K, M]) Count(room K) int {
	return len(s.rooms[room])
}

func (s *MembershipStore[K, M]) Has(room K) bool {
	_, ok := s.rooms[room]
	return ok
}

func (s *MembershipStore[K, M]) Rooms() []K {
	out := make([]K, 0, len(s.rooms))
	for k := range s.rooms {
		out = append(out, k)
	}
	return out
}

func (s *MembershipStore[K, M]) Len() int { return len(s.rooms) }
