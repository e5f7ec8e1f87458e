package orch

import (
	"encoding/json"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
)

// Signal relays an opaque payload to another identity. An offline target is
// not an error for the sender.
func (o *Orchestrator) Signal(sid core.SessionID, to domain.UserID, data json.RawMessage) error {
	c, err := o.connection(sid)
	if err != nil {
		return err
	}
	if to == "" {
		return domain.NewError(domain.KindBadRequest, "toIdentityId is required")
	}
	o.Relay.Relay(c.User.ID, to, data)
	return nil
}
