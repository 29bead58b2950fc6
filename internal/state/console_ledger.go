package state

import (
	"context"

	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// ConsoleLedger implements Ledger by logging each fill, grounded on the
// teacher's ConsoleStorage. Used when no Postgres DSN is configured.
type ConsoleLedger struct {
	logger *zap.Logger
}

// NewConsoleLedger creates a console-backed ledger.
func NewConsoleLedger(logger *zap.Logger) *ConsoleLedger {
	logger.Info("console-ledger-initialized")
	return &ConsoleLedger{logger: logger}
}

// RecordFill logs the fill at info level.
func (c *ConsoleLedger) RecordFill(ctx context.Context, conditionID string, f boxtypes.Fill) error {
	c.logger.Info("fill-ledger-entry",
		zap.String("condition-id", conditionID),
		zap.String("token-id", f.TokenID),
		zap.String("outcome", string(f.Outcome)),
		zap.String("side", string(f.Side)),
		zap.Float64("price", f.Price),
		zap.Float64("size", f.Size),
		zap.Float64("notional", f.Notional()),
		zap.Bool("maker", f.Maker),
		zap.Time("timestamp", f.Timestamp))
	return nil
}

// Close is a no-op for the console ledger.
func (c *ConsoleLedger) Close() error {
	c.logger.Info("closing-console-ledger")
	return nil
}
