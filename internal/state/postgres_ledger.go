package state

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

// PostgresLedger implements Ledger using PostgreSQL, grounded on the
// teacher's PostgresStorage (internal/storage/postgres.go), repurposed from
// an arbitrage_opportunities table to a box-bot fills table.
type PostgresLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresLedger opens a connection and verifies it with a ping.
func NewPostgresLedger(cfg *PostgresConfig) (*PostgresLedger, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-ledger-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresLedger{db: db, logger: cfg.Logger}, nil
}

// RecordFill inserts one fill row into the box_fills table.
func (p *PostgresLedger) RecordFill(ctx context.Context, conditionID string, f boxtypes.Fill) error {
	query := `
		INSERT INTO box_fills (
			order_id, condition_id, token_id, outcome, side,
			price, size, notional, maker, filled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		f.OrderID,
		conditionID,
		f.TokenID,
		string(f.Outcome),
		string(f.Side),
		f.Price,
		f.Size,
		f.Notional(),
		f.Maker,
		f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}

	p.logger.Debug("fill-ledger-entry-stored",
		zap.String("order-id", f.OrderID),
		zap.String("condition-id", conditionID))

	return nil
}

// Close closes the database connection.
func (p *PostgresLedger) Close() error {
	p.logger.Info("closing-postgres-ledger")
	return p.db.Close()
}
