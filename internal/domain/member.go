package domain

import "time"

// VoiceFlags is the mute/deafen/speaking sub-state of a voice participant.
type VoiceFlags struct {
	Mute     bool `json:"mute"`
	Deafen   bool `json:"deafen"`
	Speaking bool `json:"speaking"`
}

// VoiceFlagsPatch carries only the flags a client asked to change.
type VoiceFlagsPatch struct {
	Mute     *bool `json:"mute,omitempty"`
	Deafen   *bool `json:"deafen,omitempty"`
	Speaking *bool `json:"speaking,omitempty"`
}

func (p VoiceFlagsPatch) Empty() bool {
	return p.Mute == nil && p.Deafen == nil && p.Speaking == nil
}

// Apply overwrites the flags present in p.
func (f *VoiceFlags) Apply(p VoiceFlagsPatch) {
	if p.Mute != nil {
		f.Mute = *p.Mute
	}
	if p.Deafen != nil {
		f.Deafen = *p.Deafen
	}
	if p.Speaking != nil {
		f.Speaking = *p.Speaking
	}
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User     User
	Flags    VoiceFlags
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user User, flags VoiceFlags, joinedAt time.Time) *Member {
	// speaking never survives a rejoin
	flags.Speaking = false
	return &Member{User: user, Flags: flags, JoinedAt: joinedAt}
}

// VoiceState is the persisted mirror of a user's voice preferences.
// ChannelID is empty when the user is not in a room.
type VoiceState struct {
	UserID    UserID `json:"identityId"`
	ChannelID RoomID `json:"channelId,omitempty"`
	VoiceFlags
}

// VoiceStatePatch is an upsert request: nil fields keep the stored value
// (or the zero default on insert).
type VoiceStatePatch struct {
	ChannelID *RoomID
	VoiceFlagsPatch
}
