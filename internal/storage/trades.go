package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"flipbot/internal/domain"
)

// TradeStore is the durable trade ledger. Every accepted signal becomes a
// row here before anything is sent to the exchange, so the ledger survives
// restarts and doubles as the fallback source of believed position state.
type TradeStore struct {
	db *sql.DB
}

// OpenTradeStore opens (or creates) the SQLite ledger with WAL mode enabled.
func OpenTradeStore(dbPath string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id              TEXT PRIMARY KEY,
			instrument      TEXT NOT NULL,
			direction       TEXT NOT NULL,
			price           REAL NOT NULL DEFAULT 0,
			size            REAL NOT NULL DEFAULT 0,
			size_usd        REAL NOT NULL DEFAULT 0,
			leverage        REAL NOT NULL DEFAULT 0,
			margin          REAL NOT NULL DEFAULT 0,
			liq_price       REAL NOT NULL DEFAULT 0,
			exit_price      REAL,
			realized_pnl    REAL,
			status          TEXT NOT NULL,
			response        TEXT NOT NULL DEFAULT '',
			reservation_key TEXT,
			created_at      INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	// One concurrent reservation per key, one placed position per instrument.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_reservation
			ON trades(reservation_key) WHERE reservation_key IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_one_placed
			ON trades(instrument) WHERE status = 'placed';`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument_created
			ON trades(instrument, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status
			ON trades(status);`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &TradeStore{db: db}, nil
}

// Insert persists a new trade row. A non-empty Reservation claims the
// per-instrument reservation slot; if another row already holds it,
// ErrReservationHeld is returned and nothing is written.
func (s *TradeStore) Insert(ctx context.Context, tr *domain.TradeRecord) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, instrument, direction, price, size, size_usd,
			leverage, margin, liq_price, exit_price, realized_pnl,
			status, response, reservation_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Instrument, string(tr.Direction), tr.Price, tr.Size, tr.SizeUSD,
		tr.Leverage, tr.Margin, tr.LiqPrice, tr.ExitPrice, tr.RealizedPnL,
		string(tr.Status), tr.Response, nullableString(tr.Reservation), tr.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return mapUniqueError(err)
	}
	return nil
}

// UpdateExecution records the outcome of an order placement attempt.
func (s *TradeStore) UpdateExecution(ctx context.Context, id string, status domain.Status, response string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trades SET status = ?, response = ? WHERE id = ?",
		string(status), response, id,
	)
	if err != nil {
		return mapUniqueError(err)
	}
	return requireRow(res)
}

// UpdateRisk copies the venue-reported margin and liquidation price onto a
// trade once the position exists. Signals carry neither figure.
func (s *TradeStore) UpdateRisk(ctx context.Context, id string, margin, liqPrice float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trades SET margin = ?, liq_price = ? WHERE id = ?",
		margin, liqPrice, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk fields: %w", err)
	}
	return requireRow(res)
}

// MarkClosed finalizes a trade after its position has been flattened.
func (s *TradeStore) MarkClosed(ctx context.Context, id string, exitPrice, realizedPnL float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trades SET status = ?, exit_price = ?, realized_pnl = ? WHERE id = ?",
		string(domain.StatusClosed), exitPrice, realizedPnL, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark trade closed: %w", err)
	}
	return requireRow(res)
}

// ClearReservation releases the reservation slot held by a trade. Safe to
// call when no reservation is held.
func (s *TradeStore) ClearReservation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE trades SET reservation_key = NULL WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear reservation: %w", err)
	}
	return nil
}

// LatestPlaced returns the most recent trade still in placed status for an
// instrument, or ErrNotFound when the ledger believes the book is flat.
func (s *TradeStore) LatestPlaced(ctx context.Context, instrument string) (*domain.TradeRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE instrument = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		instrument, string(domain.StatusPlaced),
	)
	tr, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest placed trade: %w", err)
	}
	return tr, nil
}

// Get returns a trade by id.
func (s *TradeStore) Get(ctx context.Context, id string) (*domain.TradeRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	tr, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade: %w", err)
	}
	return tr, nil
}

// List returns trades in most-recent-first order, optionally filtered by
// status. limit <= 0 means a default of 100.
func (s *TradeStore) List(ctx context.Context, status domain.Status, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := selectColumns
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		tr, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (s *TradeStore) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, instrument, direction, price, size, size_usd,
		leverage, margin, liq_price, exit_price, realized_pnl,
		status, response, reservation_key, created_at
	FROM trades`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*domain.TradeRecord, error) {
	var (
		tr          domain.TradeRecord
		direction   string
		status      string
		reservation sql.NullString
		createdAt   int64
	)
	err := row.Scan(&tr.ID, &tr.Instrument, &direction, &tr.Price, &tr.Size,
		&tr.SizeUSD, &tr.Leverage, &tr.Margin, &tr.LiqPrice,
		&tr.ExitPrice, &tr.RealizedPnL,
		&status, &tr.Response, &reservation, &createdAt)
	if err != nil {
		return nil, err
	}
	tr.Direction = domain.Direction(direction)
	tr.Status = domain.Status(status)
	tr.Reservation = reservation.String
	tr.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &tr, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapUniqueError translates the driver's unique-constraint failures into
// store sentinels callers can branch on.
func mapUniqueError(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint") && !strings.Contains(msg, "unique constraint") {
		return fmt.Errorf("trade write failed: %w", err)
	}
	if strings.Contains(msg, "reservation_key") || strings.Contains(msg, "idx_trades_reservation") {
		return ErrReservationHeld
	}
	return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
}
