package forecast

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/database"
)

//go:embed schema.sql
var schemaSQL string

const (
	lockQuery     = `SELECT pg_advisory_xact_lock(hashtext($1))`
	snapshotQuery = `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ`

	deletePointsQuery  = `DELETE FROM forecast.price_points WHERE symbol = $1`
	deleteGenInfoQuery = `DELETE FROM forecast.gen_info WHERE symbol = $1`

	insertPointQuery = `
		INSERT INTO forecast.price_points (symbol, kind, point_date, high, low, close)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	insertGenInfoQuery = `
		INSERT INTO forecast.gen_info (
			symbol, last_update, last_close, outlook, price_change_pct, confidence, rationale, market_cap
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	selectGenInfoQuery = `
		SELECT last_update, last_close, outlook, price_change_pct, confidence, rationale, market_cap
		FROM forecast.gen_info
		WHERE symbol = $1
	`

	pruneQuery = `
		WITH stale AS (
			DELETE FROM forecast.gen_info WHERE last_update < $1 RETURNING symbol
		), points AS (
			DELETE FROM forecast.price_points WHERE symbol IN (SELECT symbol FROM stale)
		)
		SELECT count(*) FROM stale
	`

	selectPointsQuery = `
		SELECT kind, point_date, high, low, close
		FROM forecast.price_points
		WHERE symbol = $1
		ORDER BY kind, point_date
	`
)

// RefreshInput is everything written by one refresh
type RefreshInput struct {
	Key       string
	Forecast  *contracts.ParsedForecast
	MarketCap *float64
	SpotPrice float64
}

// Repository is the cache store. Tables are fixed; the symbol key is only
// ever a bound parameter.
// ⭐ SSOT: forecast rows are written and read only here
type Repository struct {
	db  database.Conn
	now func() time.Time

	// beforeCommit runs inside the refresh transaction after all writes
	beforeCommit func(ctx context.Context, tx pgx.Tx) error
}

// NewRepository creates a repository over db
func NewRepository(db database.Conn) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
	}
}

// Migrate creates the forecast schema if missing
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return contracts.NewError(contracts.KindPersistence, "migrate", err)
	}
	return nil
}

// Refresh replaces the symbol's entry in one transaction. On any failure
// the transaction is rolled back and the previous entry (or its absence)
// is left as it was.
func (r *Repository) Refresh(ctx context.Context, in RefreshInput) error {
	const op = "refresh cache entry"

	if in.Forecast == nil || len(in.Forecast.Historical) == 0 {
		return contracts.NewError(contracts.KindPersistence, op, errors.New("forecast has no historical points"))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	// serializes refreshers of the same symbol across processes
	if _, err := tx.Exec(ctx, lockQuery, in.Key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to lock symbol: %w", err))
	}

	if _, err := tx.Exec(ctx, deletePointsQuery, in.Key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to delete price points: %w", err))
	}
	if _, err := tx.Exec(ctx, deleteGenInfoQuery, in.Key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to delete gen info: %w", err))
	}

	points := make([]contracts.PricePoint, 0, len(in.Forecast.Historical)+len(in.Forecast.Predictions))
	points = append(points, in.Forecast.Historical...)
	points = append(points, in.Forecast.Predictions...)
	for _, p := range points {
		_, err := tx.Exec(ctx, insertPointQuery, in.Key, string(p.Kind), p.Date, p.High, p.Low, p.Close)
		if err != nil {
			return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to insert price point: %w", err))
		}
	}

	info := BuildGenInfo(in.Forecast, in.SpotPrice, in.MarketCap, r.now())
	_, err = tx.Exec(ctx, insertGenInfoQuery,
		in.Key, info.LastUpdate, info.LastClose, string(info.Outlook),
		info.PriceChangePct, info.Confidence, info.Rationale, info.MarketCap,
	)
	if err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to insert gen info: %w", err))
	}

	if r.beforeCommit != nil {
		if err := r.beforeCommit(ctx, tx); err != nil {
			return contracts.NewError(contracts.KindPersistence, op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// BuildGenInfo derives the summary row for a parsed forecast.
// The change percentage compares the first prediction with spot.
func BuildGenInfo(f *contracts.ParsedForecast, spot float64, marketCap *float64, now time.Time) contracts.GenInfo {
	info := contracts.GenInfo{
		LastUpdate: now.UTC(),
		Outlook:    f.Outlook,
		Confidence: f.Confidence,
		Rationale:  f.Rationale,
		MarketCap:  marketCap,
	}
	if n := len(f.Historical); n > 0 {
		info.LastClose = f.Historical[n-1].Close
	}
	if spot > 0 && len(f.Predictions) > 0 {
		spotDec := decimal.NewFromFloat(spot)
		info.PriceChangePct = decimal.NewFromFloat(f.Predictions[0].Close).
			Sub(spotDec).
			Div(spotDec).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}
	return info
}

// GenInfo returns the symbol's summary row or a NotFound error
func (r *Repository) GenInfo(ctx context.Context, key string) (*contracts.GenInfo, error) {
	return readGenInfo(ctx, r.db, key)
}

// Read returns the complete cache entry for key. Both tables are read from
// one snapshot so a concurrent refresh is never seen half-applied.
func (r *Repository) Read(ctx context.Context, key string) (*contracts.CacheEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read cache entry", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, snapshotQuery); err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read cache entry", err)
	}

	info, err := readGenInfo(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, selectPointsQuery, key)
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read price points", err)
	}
	defer rows.Close()

	entry := &contracts.CacheEntry{
		Symbol: key,
		Series: make([]contracts.PricePoint, 0),
		Info:   *info,
	}
	for rows.Next() {
		var (
			p    contracts.PricePoint
			kind string
		)
		if err := rows.Scan(&kind, &p.Date, &p.High, &p.Low, &p.Close); err != nil {
			return nil, contracts.NewError(contracts.KindPersistence, "scan price point", err)
		}
		p.Kind = contracts.PointKind(kind)
		entry.Series = append(entry.Series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read price points", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read cache entry", err)
	}

	return entry, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readGenInfo(ctx context.Context, q rowQuerier, key string) (*contracts.GenInfo, error) {
	var (
		info    contracts.GenInfo
		outlook string
	)
	err := q.QueryRow(ctx, selectGenInfoQuery, key).Scan(
		&info.LastUpdate, &info.LastClose, &outlook, &info.PriceChangePct,
		&info.Confidence, &info.Rationale, &info.MarketCap,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NewError(contracts.KindNotFound, "read gen info", fmt.Errorf("no cache entry for %s", key))
	}
	if err != nil {
		return nil, contracts.NewError(contracts.KindPersistence, "read gen info", err)
	}
	info.Outlook = contracts.Outlook(outlook)

	return &info, nil
}

// Delete removes the symbol's entry atomically
func (r *Repository) Delete(ctx context.Context, key string) error {
	const op = "delete cache entry"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return contracts.NewError(contracts.KindPersistence, op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockQuery, key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, err)
	}
	if _, err := tx.Exec(ctx, deletePointsQuery, key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, err)
	}
	if _, err := tx.Exec(ctx, deleteGenInfoQuery, key); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return contracts.NewError(contracts.KindPersistence, op, err)
	}
	return nil
}

// PruneStale deletes every entry last updated before cutoff and returns
// how many symbols were removed.
func (r *Repository) PruneStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	if err := r.db.QueryRow(ctx, pruneQuery, cutoff).Scan(&removed); err != nil {
		return 0, contracts.NewError(contracts.KindPersistence, "prune stale entries", err)
	}
	return removed, nil
}
