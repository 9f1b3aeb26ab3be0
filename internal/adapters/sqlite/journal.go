// Package sqlite implements ports.Journal: a local audit trail of every
// record the engine dispatched to the remote ledger, plus the persisted
// drawdown peaks that cannot be recomputed from upstream history after a
// restart.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradesentry/internal/domain"
	"tradesentry/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements the ports.Journal interface using SQLite.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	Path   string
	Logger ports.Logger
}

// NewJournal opens (creating if necessary) the journal database.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	path := cfg.Path
	if path == "" {
		path = "./data/tradesentry.db"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(path), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open journal at '%s': %w", path, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping journal at '%s': %w", path, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; limiting the Go side to one
	// connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Journal opened", map[string]interface{}{"path": path})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS dispatched_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket INTEGER NOT NULL,
		strategy_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		volume REAL NOT NULL,
		pnl REAL NOT NULL,
		result TEXT NOT NULL,
		balance REAL NOT NULL,
		open_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NOT NULL,
		comment TEXT,
		dispatched_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dispatched_drawdowns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy_id INTEGER NOT NULL,
		balance REAL NOT NULL,
		equity REAL NOT NULL,
		peak_balance REAL NOT NULL,
		drawdown_account REAL NOT NULL,
		drawdown_account_pct REAL NOT NULL,
		drawdown_strategy REAL NOT NULL,
		max_drawdown_strategy REAL NOT NULL,
		peak_strategy REAL NOT NULL,
		reported_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS strategy_peaks (
		strategy_id INTEGER PRIMARY KEY,
		peak_equity REAL NOT NULL,
		max_drawdown REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS account_peak (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		peak_balance REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispatched_trades_ticket ON dispatched_trades (ticket);
	CREATE INDEX IF NOT EXISTS idx_dispatched_drawdowns_strategy ON dispatched_drawdowns (strategy_id, reported_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrJournalWrite, err)
	}
	return nil
}

// RecordTrade appends a successfully dispatched trade.
func (j *Journal) RecordTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatched_trades
		(ticket, strategy_id, symbol, direction, volume, pnl, result, balance, open_time, close_time, comment, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(trade.PositionID), trade.StrategyID, trade.Symbol, string(trade.Direction),
		trade.Volume, trade.PNL, string(trade.Result()), trade.Balance,
		trade.OpenTime.UTC(), trade.CloseTime.UTC(), trade.Comment, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: recording trade %d: %v", ports.ErrJournalWrite, trade.PositionID, err)
	}
	return nil
}

// RecordDrawdown appends a dispatched drawdown report and raises the persisted
// peaks for its strategy and the account. Peaks only ever move up here; the
// monotonic invariant is enforced in SQL so concurrent writers from a future
// multi-driver setup cannot regress them.
func (j *Journal) RecordDrawdown(ctx context.Context, report *domain.DrawdownReport) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ports.ErrJournalWrite, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dispatched_drawdowns
		(strategy_id, balance, equity, peak_balance, drawdown_account, drawdown_account_pct,
		 drawdown_strategy, max_drawdown_strategy, peak_strategy, reported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.StrategyID, report.Balance, report.Equity, report.PeakBalance,
		report.AccountDrawdown, report.AccountDrawdownPct,
		report.StrategyDrawdown, report.MaxStrategyDrawdown, report.PeakStrategyEquity,
		report.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: recording drawdown report: %v", ports.ErrJournalWrite, err)
	}

	if err := upsertPeaks(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ports.ErrJournalWrite, err)
	}
	return nil
}

// PersistPeaks raises the stored peaks without appending an audit row. Used
// when a drawdown report failed to dispatch: the audit trail records what was
// sent, but the peaks must keep moving through a ledger outage.
func (j *Journal) PersistPeaks(ctx context.Context, report *domain.DrawdownReport) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ports.ErrJournalWrite, err)
	}
	defer tx.Rollback()

	if err := upsertPeaks(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ports.ErrJournalWrite, err)
	}
	return nil
}

// upsertPeaks enforces the monotonic invariant in SQL: peaks only ever move up.
func upsertPeaks(ctx context.Context, tx *sql.Tx, report *domain.DrawdownReport) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_peaks (strategy_id, peak_equity, max_drawdown)
		VALUES (?, ?, ?)
		ON CONFLICT(strategy_id) DO UPDATE SET
			peak_equity = MAX(peak_equity, excluded.peak_equity),
			max_drawdown = MAX(max_drawdown, excluded.max_drawdown)`,
		report.StrategyID, report.PeakStrategyEquity, report.MaxStrategyDrawdown,
	)
	if err != nil {
		return fmt.Errorf("%w: updating strategy peaks: %v", ports.ErrJournalWrite, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_peak (id, peak_balance) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			peak_balance = MAX(peak_balance, excluded.peak_balance)`,
		report.PeakBalance,
	)
	if err != nil {
		return fmt.Errorf("%w: updating account peak: %v", ports.ErrJournalWrite, err)
	}
	return nil
}

// LoadStrategyPeaks returns the persisted peaks per strategy id.
func (j *Journal) LoadStrategyPeaks(ctx context.Context) (map[int64]ports.StrategyPeaks, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT strategy_id, peak_equity, max_drawdown FROM strategy_peaks`)
	if err != nil {
		return nil, fmt.Errorf("%w: loading strategy peaks: %v", ports.ErrJournalQuery, err)
	}
	defer rows.Close()

	peaks := make(map[int64]ports.StrategyPeaks)
	for rows.Next() {
		var id int64
		var p ports.StrategyPeaks
		if err := rows.Scan(&id, &p.PeakEquity, &p.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("%w: scanning strategy peaks: %v", ports.ErrJournalQuery, err)
		}
		peaks[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating strategy peaks: %v", ports.ErrJournalQuery, err)
	}
	return peaks, nil
}

// LoadAccountPeak returns the persisted account peak balance, 0 if none yet.
func (j *Journal) LoadAccountPeak(ctx context.Context) (float64, error) {
	var peak float64
	err := j.db.QueryRowContext(ctx, `SELECT peak_balance FROM account_peak WHERE id = 1`).Scan(&peak)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: loading account peak: %v", ports.ErrJournalQuery, err)
	}
	return peak, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
