package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// ErrNotFound is returned when a statement id is unknown.
var ErrNotFound = errors.New("statement not found")

// StoredStatement is the summary row of an archived statement.
type StoredStatement struct {
	ID         uuid.UUID         `json:"id"`
	Broker     models.BrokerType `json:"broker"`
	SourceName string            `json:"source_name"`
	models.StatementHeader
	OperationsCount   int       `json:"operations_count"`
	UnrecognizedNames []string  `json:"unrecognized_names"`
	CreatedAt         time.Time `json:"created_at"`
}

// StatementRepository provides statement data access
type StatementRepository struct {
	db *DB
}

// NewStatementRepository creates a new statement repository
func NewStatementRepository(db *DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// SaveStatement stores the header and operations of result in one
// transaction and returns the new statement id.
func (r *StatementRepository) SaveStatement(ctx context.Context, result *models.StatementResult, sourceName string) (uuid.UUID, error) {
	id := uuid.New()

	unrecognized, err := json.Marshal(nonNil(result.Meta.UnrecognizedNames))
	if err != nil {
		return uuid.Nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, broker, source_name, account_id, account_date_start, date_start, date_end, operations_count, unrecognized_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		string(result.Broker),
		sourceName,
		result.AccountID,
		result.AccountDateStart,
		result.DateStart,
		result.DateEnd,
		len(result.Operations),
		string(unrecognized),
		time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert statement: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operations (statement_id, seq, date, operation_type, payment_sum, currency, ticker, isin, reg_number, price, quantity, aci, comment, operation_id, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare operation insert: %w", err)
	}
	defer stmt.Close()

	for i, op := range result.Operations {
		_, err := stmt.ExecContext(ctx,
			id.String(),
			i,
			op.Date.ISO(),
			string(op.OperationType),
			op.PaymentSum.String(),
			op.Currency,
			op.Ticker,
			op.ISIN,
			op.RegNumber,
			op.Price.String(),
			op.Quantity,
			op.ACI.String(),
			op.Comment,
			op.OperationID,
			op.Commission.String(),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert operation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit statement: %w", err)
	}
	return id, nil
}

// ListStatements returns archived statements, newest first.
func (r *StatementRepository) ListStatements(ctx context.Context) ([]StoredStatement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, broker, source_name, account_id, account_date_start, date_start, date_end, operations_count, unrecognized_names, created_at
		FROM statements ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statements := []StoredStatement{}
	for rows.Next() {
		var (
			s            StoredStatement
			id, broker   string
			unrecognized string
		)
		err := rows.Scan(&id, &broker, &s.SourceName, &s.AccountID, &s.AccountDateStart,
			&s.DateStart, &s.DateEnd, &s.OperationsCount, &unrecognized, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad statement id %q: %w", id, err)
		}
		s.Broker = models.BrokerType(broker)
		if err := json.Unmarshal([]byte(unrecognized), &s.UnrecognizedNames); err != nil {
			return nil, fmt.Errorf("bad unrecognized names for %s: %w", id, err)
		}
		statements = append(statements, s)
	}
	return statements, rows.Err()
}

// ListOperations returns the operations of a statement in their stored order.
func (r *StatementRepository) ListOperations(ctx context.Context, statementID uuid.UUID) ([]models.OperationRecord, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM statements WHERE id = ?`, statementID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT date, operation_type, payment_sum, currency, ticker, isin, reg_number, price, quantity, aci, comment, operation_id, commission
		FROM operations WHERE statement_id = ? ORDER BY seq
	`, statementID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops := []models.OperationRecord{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanOperation(rows *sql.Rows) (models.OperationRecord, error) {
	var (
		op                          models.OperationRecord
		date, typ                   string
		sum, price, aci, commission string
	)
	err := rows.Scan(&date, &typ, &sum, &op.Currency, &op.Ticker, &op.ISIN, &op.RegNumber,
		&price, &op.Quantity, &aci, &op.Comment, &op.OperationID, &commission)
	if err != nil {
		return op, err
	}

	if op.Date, err = models.ParseTimestamp(date); err != nil {
		return op, fmt.Errorf("bad operation date %q: %w", date, err)
	}
	op.OperationType = models.OperationType(typ)

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{sum, &op.PaymentSum},
		{price, &op.Price},
		{aci, &op.ACI},
		{commission, &op.Commission},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return op, fmt.Errorf("bad decimal %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return op, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
