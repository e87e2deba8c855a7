package port

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/passgage/auth-gateway/internal/core/domain"
)

// ErrUnknownCommand indicates the dispatcher has no handler for the named
// command. Transports map it to their method-not-found error.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a raw downstream command as received on the wire. The gateway
// does not validate or shape command parameters; that belongs to the
// dispatcher.
type Command struct {
	Name   string
	Params json.RawMessage
}

// CommandDispatcher executes a resolved, admitted command against the
// upstream Passgage API. It is an external collaborator: the gateway hands
// it a one-request credential context and serialises whatever comes back.
// Per-command auth-mode policy (which modes a command accepts) lives behind
// this interface, as do upstream timeouts.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, auth domain.AuthContext, cmd Command) (any, error)
}
