package domain

type (
	RoomID   string
	ServerID string
)

type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

// Channel is the persisted channel row as seen by the realtime core.
// Capacity of zero means unlimited.
type Channel struct {
	ID       RoomID      `json:"id"`
	ServerID ServerID    `json:"serverId"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	Capacity int         `json:"capacity,omitempty"`
}

func (c *Channel) IsVoice() bool { return c.Type == ChannelVoice }
