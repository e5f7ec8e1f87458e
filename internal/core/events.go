package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/parley/internal/domain"
)

const (
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
	EventVoiceUserJoined  = "voice:userJoined"
	EventVoiceUserLeft    = "voice:userLeft"
	EventVoiceStateUpdate = "voice:stateUpdate"
	EventVoiceSignal      = "voice:signal"
)

// ParticipantDTO is a read-only view of a voice membership (no transport fields).
type ParticipantDTO struct {
	ChannelID     domain.RoomID `json:"channelId"`
	IdentityID    domain.UserID `json:"identityId"`
	Username      string        `json:"username"`
	Discriminator string        `json:"discriminator"`
	Avatar        string        `json:"avatar,omitempty"`
	ConnectionID  SessionID     `json:"connectionId"`
	Mute          bool          `json:"mute"`
	Deafen        bool          `json:"deafen"`
	Speaking      bool          `json:"speaking"`
	JoinedAt      time.Time     `json:"joinedAt"`
}

type RoomView struct {
	ChannelID    domain.RoomID    `json:"channelId"`
	ServerID     domain.ServerID  `json:"serverId"`
	Participants []ParticipantDTO `json:"participants"`
}

type UserOnline struct {
	IdentityID    domain.UserID `json:"identityId"`
	Username      string        `json:"username"`
	Discriminator string        `json:"discriminator"`
	Avatar        string        `json:"avatar,omitempty"`
}

type UserOffline struct {
	IdentityID    domain.UserID `json:"identityId"`
	Username      string        `json:"username"`
	Discriminator string        `json:"discriminator"`
}

type VoiceUserJoined struct {
	ChannelID     domain.RoomID `json:"channelId"`
	IdentityID    domain.UserID `json:"identityId"`
	Username      string        `json:"username"`
	Discriminator string        `json:"discriminator"`
	Avatar        string        `json:"avatar,omitempty"`
	ConnectionID  SessionID     `json:"connectionId"`
	JoinedAt      time.Time     `json:"joinedAt"`
}

type VoiceUserLeft struct {
	ChannelID    domain.RoomID `json:"channelId"`
	IdentityID   domain.UserID `json:"identityId"`
	ConnectionID SessionID     `json:"connectionId"`
}

// VoiceStateUpdate carries only the flags that changed.
type VoiceStateUpdate struct {
	IdentityID   domain.UserID `json:"identityId"`
	ConnectionID SessionID     `json:"connectionId"`
	domain.VoiceFlagsPatch
}

type VoiceSignal struct {
	FromIdentityID domain.UserID   `json:"fromIdentityId"`
	Data           json.RawMessage `json:"data"`
}
