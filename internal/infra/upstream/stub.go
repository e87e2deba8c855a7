// Package upstream holds command dispatcher implementations. The real
// Passgage API client plugs in behind port.CommandDispatcher; this package
// ships a logging stub for wiring and tests.
package upstream

import (
	"context"

	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
)

// StubDispatcher acknowledges every command without calling upstream. It
// echoes the resolved auth mode so gateway behaviour is observable end to
// end before a real client is wired in.
type StubDispatcher struct {
	logger *zap.Logger
}

// NewStubDispatcher constructs the stub.
func NewStubDispatcher(log *zap.Logger) *StubDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubDispatcher{logger: log}
}

// Dispatch implements port.CommandDispatcher.
func (d *StubDispatcher) Dispatch(_ context.Context, auth domain.AuthContext, cmd port.Command) (any, error) {
	d.logger.Debug("stub dispatch",
		zap.String("method", cmd.Name),
		zap.String("mode", string(auth.Mode)),
		zap.Bool("authenticated", auth.Authenticated()),
	)

	return map[string]any{
		"acknowledged": true,
		"method":       cmd.Name,
		"mode":         string(auth.Mode),
	}, nil
}
