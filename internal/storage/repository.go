// Package storage is the durable SQLite backend for the accrual ledger and
// the accounting settings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"accruals/internal/core"
	"accruals/internal/ledger"
	"accruals/internal/settings"
)

// amountScale is the number of decimal places kept in the integer columns.
const amountScale = 6

var (
	_ ledger.Store   = (*SQLiteRepository)(nil)
	_ settings.Store = (*SettingsStore)(nil)
)

type SQLiteRepository struct {
	db       *sql.DB
	defaults core.Settings
	now      func() time.Time

	// settingsMu serializes Update's read-apply-write.
	settingsMu sync.Mutex
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs migrations. defaults seed settings keys that were never written.
func NewSQLiteRepository(dbPath string, defaults core.Settings) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "db_path", dbPath, "schema_version", version)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, defaults: defaults, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var (
	maxMicros = decimal.NewFromInt(math.MaxInt64)
	minMicros = decimal.NewFromInt(math.MinInt64)
)

// toMicros scales d to the integer column representation. Amounts whose
// scaled value does not fit in an int64 are rejected.
func toMicros(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(amountScale).Round(0)
	if scaled.GreaterThan(maxMicros) || scaled.LessThan(minMicros) {
		return 0, fmt.Errorf("amount %s is out of range", d.String())
	}
	return scaled.IntPart(), nil
}

func fromMicros(v int64) decimal.Decimal {
	return decimal.New(v, -amountScale)
}

const upsertAccrued = `
INSERT INTO accruals (campaign_ref, accrued_micros, settled_micros, updated_at)
VALUES (?, ?, 0, ?)
ON CONFLICT (campaign_ref) DO UPDATE SET
    accrued_micros = accrued_micros + excluded.accrued_micros,
    updated_at = excluded.updated_at
RETURNING campaign_ref, accrued_micros, settled_micros, updated_at`

const upsertSettled = `
INSERT INTO accruals (campaign_ref, accrued_micros, settled_micros, updated_at)
VALUES (?, 0, ?, ?)
ON CONFLICT (campaign_ref) DO UPDATE SET
    settled_micros = settled_micros + excluded.settled_micros,
    updated_at = excluded.updated_at
RETURNING campaign_ref, accrued_micros, settled_micros, updated_at`

// Accrue implements ledger.Store with a single upsert statement.
func (r *SQLiteRepository) Accrue(ctx context.Context, ref string, amount decimal.Decimal) (core.AccrualRecord, error) {
	micros, err := toMicros(amount)
	if err != nil {
		return core.AccrualRecord{}, fmt.Errorf("accrue %s: %w", ref, err)
	}
	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, upsertAccrued, ref, micros, r.timestamp()))
	if err != nil {
		return core.AccrualRecord{}, fmt.Errorf("accrue %s: %w", ref, err)
	}
	slog.DebugContext(ctx, "Accrual recorded", "campaign_ref", ref, "accrued", rec.Accrued.String())
	return rec, nil
}

// Settle implements ledger.Store.
func (r *SQLiteRepository) Settle(ctx context.Context, ref string, amount decimal.Decimal) (core.AccrualRecord, error) {
	micros, err := toMicros(amount)
	if err != nil {
		return core.AccrualRecord{}, fmt.Errorf("settle %s: %w", ref, err)
	}
	rec, err := r.scanRecord(r.db.QueryRowContext(ctx, upsertSettled, ref, micros, r.timestamp()))
	if err != nil {
		return core.AccrualRecord{}, fmt.Errorf("settle %s: %w", ref, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ref string) (core.AccrualRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT campaign_ref, accrued_micros, settled_micros, updated_at FROM accruals WHERE campaign_ref = ?`, ref)
	rec, err := r.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AccrualRecord{}, false, nil
	}
	if err != nil {
		return core.AccrualRecord{}, false, fmt.Errorf("get accrual %s: %w", ref, err)
	}
	return rec, true, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.AccrualRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT campaign_ref, accrued_micros, settled_micros, updated_at FROM accruals ORDER BY campaign_ref`)
	if err != nil {
		return nil, fmt.Errorf("list accruals: %w", err)
	}
	defer rows.Close()

	var out []core.AccrualRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan accrual: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkReconciled(ctx context.Context, billID string, status core.DocumentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reconciled_bills (bill_id, status, reconciled_at) VALUES (?, ?, ?)`,
		billID, string(status), r.timestamp())
	if err != nil {
		return fmt.Errorf("mark bill %s reconciled: %w", billID, err)
	}
	return nil
}

func (r *SQLiteRepository) IsReconciled(ctx context.Context, billID string, status core.DocumentStatus) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM reconciled_bills WHERE bill_id = ? AND status = ?`, billID, string(status)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check bill %s: %w", billID, err)
	}
	return n > 0, nil
}

// GetSettings returns the stored keys overlaid on the defaults.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return core.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()

	values := map[string]any{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return core.Settings{}, fmt.Errorf("scan setting: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return core.Settings{}, err
	}

	patch, err := core.ParseSettingsPatch(values)
	if err != nil {
		return core.Settings{}, fmt.Errorf("stored settings: %w", err)
	}
	return patch.Apply(r.defaults), nil
}

// UpdateSettings writes only the keys present in patch.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	r.settingsMu.Lock()
	defer r.settingsMu.Unlock()

	current, err := r.GetSettings(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	next := patch.Apply(current)
	values := next.Values()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Settings{}, fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	ts := r.timestamp()
	for _, key := range changedKeys(patch) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, values[key], ts)
		if err != nil {
			return core.Settings{}, fmt.Errorf("write setting %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.Settings{}, fmt.Errorf("commit settings update: %w", err)
	}

	slog.InfoContext(ctx, "Settings updated", "keys", strings.Join(changedKeys(patch), ","))
	return next, nil
}

// SettingsStore exposes the repository as a settings.Store.
type SettingsStore struct {
	repo *SQLiteRepository
}

func (r *SQLiteRepository) Settings() *SettingsStore {
	return &SettingsStore{repo: r}
}

func (s *SettingsStore) Get(ctx context.Context) (core.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *SettingsStore) Update(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	return s.repo.UpdateSettings(ctx, patch)
}

func changedKeys(p core.SettingsPatch) []string {
	var keys []string
	if p.RevenueCode != nil {
		keys = append(keys, core.SettingRevenueCode)
	}
	if p.CostCode != nil {
		keys = append(keys, core.SettingCostCode)
	}
	if p.AccrualCode != nil {
		keys = append(keys, core.SettingAccrualCode)
	}
	if p.SalesTaxName != nil {
		keys = append(keys, core.SettingSalesTaxName)
	}
	if p.AutoApproveBills != nil {
		keys = append(keys, core.SettingAutoApproveBills)
	}
	return keys
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanRecord(s scanner) (core.AccrualRecord, error) {
	var (
		rec              core.AccrualRecord
		accrued, settled int64
		updated          string
	)
	if err := s.Scan(&rec.CampaignRef, &accrued, &settled, &updated); err != nil {
		return core.AccrualRecord{}, err
	}
	rec.Accrued = fromMicros(accrued)
	rec.Settled = fromMicros(settled)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}
