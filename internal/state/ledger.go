package state

import (
	"context"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// Ledger is an optional side-channel for historical fill reporting,
// independent of the JSON snapshot that is the bot's primary durable state.
type Ledger interface {
	RecordFill(ctx context.Context, conditionID string, f boxtypes.Fill) error
	Close() error
}
