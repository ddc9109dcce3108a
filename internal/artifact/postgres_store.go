package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/retry"
)

// PostgresStore persists artifacts in the model_artifacts table.
type PostgresStore struct {
	db     *sql.DB
	policy retry.Policy
}

// NewPostgresStore creates a new PostgreSQL-backed artifact store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, policy: retry.DefaultPolicy}
}

// Save assigns the next version. Concurrent writers racing for the same
// version are retried.
func (p *PostgresStore) Save(ctx context.Context, rec *Record) error {
	var auc sql.NullFloat64
	if rec.OOFAUC.Defined() {
		auc = sql.NullFloat64{Float64: float64(rec.OOFAUC), Valid: true}
	}
	return p.policy.Do(ctx, func() error {
		err := p.db.QueryRowContext(ctx, `
			INSERT INTO model_artifacts (id, version, run_id, oof_auc, created_at, blob)
			SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, $5 FROM model_artifacts
			RETURNING version`,
			rec.ID, rec.RunID, auc, rec.CreatedAt, rec.Blob,
		).Scan(&rec.Version)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return err
			}
			return retry.Permanent(err)
		}
		return nil
	})
}

func (p *PostgresStore) Get(ctx context.Context, version int) (*Record, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, version, run_id, oof_auc, created_at, blob
		FROM model_artifacts WHERE version = $1`, version))
}

func (p *PostgresStore) Latest(ctx context.Context) (*Record, error) {
	return p.scan(p.db.QueryRowContext(ctx, `
		SELECT id, version, run_id, oof_auc, created_at, blob
		FROM model_artifacts ORDER BY version DESC LIMIT 1`))
}

func (p *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, version, run_id, oof_auc, created_at
		FROM model_artifacts ORDER BY version DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			auc sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Version, &r.RunID, &auc, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.OOFAUC = metric(auc)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) scan(row *sql.Row) (*Record, error) {
	var (
		r   Record
		auc sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.Version, &r.RunID, &auc, &r.CreatedAt, &r.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	r.OOFAUC = metric(auc)
	return &r, nil
}

func metric(v sql.NullFloat64) evaluate.Metric {
	if !v.Valid {
		return evaluate.Metric(math.NaN())
	}
	return evaluate.Metric(v.Float64)
}
