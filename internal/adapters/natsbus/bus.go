// Package natsbus mirrors fan-out events onto NATS subjects so other
// processes can observe them. It is optional and best-effort.
package natsbus

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type publisher interface {
	Publish(subj string, data []byte) error
}

// Bus publishes every event to <prefix>.<scope>.<id>.<event>.
type Bus struct {
	nc     *nats.Conn
	pub    publisher
	prefix string
}

func Connect(url, prefix string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("parley"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "natsbus").Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("module", "natsbus").Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "natsbus").Str("url", nc.ConnectedUrl()).Str("prefix", prefix).Msg("connected")
	return &Bus{nc: nc, pub: nc, prefix: prefix}, nil
}

func (b *Bus) Publish(scope, id, event string, frame []byte) {
	subj := Subject(b.prefix, scope, id, event)
	if err := b.pub.Publish(subj, frame); err != nil {
		log.Debug().Err(err).Str("module", "natsbus").Str("subject", subj).Msg("publish failed")
	}
}

// Close flushes pending publishes and closes the connection.
func (b *Bus) Close() {
	if b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		log.Warn().Err(err).Str("module", "natsbus").Msg("drain")
	}
}

// Subject builds a subject, escaping tokens so ids never add levels.
func Subject(prefix, scope, id, event string) string {
	return strings.Join([]string{prefix, scope, token(id), token(event)}, ".")
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func token(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}
