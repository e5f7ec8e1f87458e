package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	KickConnection
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(conn Connection, event string) BackpressureAction
}

// DropPolicy loses the event and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(Connection, string) BackpressureAction { return DropEvent }

// KickPolicy closes slow connections; disconnect handling then cleans up.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(Connection, string) BackpressureAction { return KickConnection }

// PolicyFor maps the config value onto a policy. Unknown names drop.
func PolicyFor(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
