package state

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

func TestPostgresLedgerRecordFill(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ledger := &PostgresLedger{db: db, logger: zap.NewNop()}

	f := boxtypes.Fill{
		OrderID:   "order-1",
		TokenID:   "token-yes",
		Outcome:   boxtypes.OutcomeYes,
		Side:      boxtypes.SideBuy,
		Price:     0.42,
		Size:      5.0,
		Timestamp: time.Now(),
		Maker:     true,
	}

	mock.ExpectExec("INSERT INTO box_fills").
		WithArgs(f.OrderID, "cond-1", f.TokenID, string(f.Outcome), string(f.Side),
			f.Price, f.Size, f.Notional(), f.Maker, f.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := ledger.RecordFill(context.Background(), "cond-1", f); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresLedgerRecordFillError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ledger := &PostgresLedger{db: db, logger: zap.NewNop()}

	f := boxtypes.Fill{OrderID: "order-2", Price: 0.5, Size: 1, Timestamp: time.Now()}

	mock.ExpectExec("INSERT INTO box_fills").WillReturnError(sql.ErrConnDone)

	if err := ledger.RecordFill(context.Background(), "cond-2", f); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestPostgresLedgerClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	mock.ExpectClose()
	ledger := &PostgresLedger{db: db, logger: zap.NewNop()}

	if err := ledger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
