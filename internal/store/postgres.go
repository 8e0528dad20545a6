package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fieldroute/internal/model"
)

// Postgres persists point sets and plans via database/sql over pgx.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the schema if missing. Dev helper, safe to rerun.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS point_sets (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			points JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id UUID PRIMARY KEY,
			point_set_id TEXT,
			fingerprint TEXT NOT NULL,
			points JSONB NOT NULL,
			tour JSONB NOT NULL,
			stop_names JSONB NOT NULL,
			total_cost_units BIGINT NOT NULL,
			converged BOOLEAN NOT NULL,
			budget_ms INT NOT NULL,
			stats JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS plans_fingerprint_idx ON plans (fingerprint, created_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreatePointSet(ctx context.Context, in model.PointSetIn) (model.PointSet, error) {
	id := uuid.New().String()
	pts := toJSON(in.Points)
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO point_sets (id, name, points) VALUES ($1, $2, $3) RETURNING created_at`,
		id, in.Name, pts).Scan(&created)
	if err != nil {
		return model.PointSet{}, err
	}
	return model.PointSet{ID: id, Name: in.Name, Points: in.Points, CreatedAt: created.UTC().Format(time.RFC3339)}, nil
}

func (p *Postgres) GetPointSet(ctx context.Context, id string) (model.PointSet, error) {
	var (
		ps      model.PointSet
		pts     []byte
		created time.Time
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, points, created_at FROM point_sets WHERE id = $1`, id).
		Scan(&ps.ID, &ps.Name, &pts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PointSet{}, ErrNotFound
	}
	if err != nil {
		return model.PointSet{}, err
	}
	if err := json.Unmarshal(pts, &ps.Points); err != nil {
		return model.PointSet{}, err
	}
	ps.CreatedAt = created.UTC().Format(time.RFC3339)
	return ps, nil
}

func (p *Postgres) ListPointSets(ctx context.Context, cursor string, limit int) ([]model.PointSet, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, points, created_at FROM point_sets
		 WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.PointSet
	for rows.Next() {
		var (
			ps      model.PointSet
			pts     []byte
			created time.Time
		)
		if err := rows.Scan(&ps.ID, &ps.Name, &pts, &created); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(pts, &ps.Points); err != nil {
			return nil, "", err
		}
		ps.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, ps)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeletePointSet(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM point_sets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SavePlan(ctx context.Context, pl model.Plan) (model.Plan, error) {
	if pl.ID == "" {
		pl.ID = uuid.New().String()
	}
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO plans (id, point_set_id, fingerprint, points, tour, stop_names, total_cost_units, converged, budget_ms, stats)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING created_at`,
		pl.ID, nullIfEmpty(pl.PointSetID), pl.Fingerprint, toJSON(pl.Points), toJSON(pl.Tour),
		toJSON(pl.StopNames), pl.TotalCostUnits, pl.Converged, pl.BudgetMs, toJSON(pl.Stats)).
		Scan(&created)
	if err != nil {
		return model.Plan{}, err
	}
	pl.CreatedAt = created.UTC().Format(time.RFC3339)
	return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, point_set_id, fingerprint, points, tour, stop_names, total_cost_units, converged, budget_ms, stats, created_at
		 FROM plans WHERE id = $1`, id)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

func (p *Postgres) ListPlans(ctx context.Context, cursor string, limit int) ([]model.Plan, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, point_set_id, fingerprint, points, tour, stop_names, total_cost_units, converged, budget_ms, stats, created_at
		 FROM plans WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Plan
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, pl)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) FindPlanByFingerprint(ctx context.Context, fp string) (model.Plan, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, point_set_id, fingerprint, points, tour, stop_names, total_cost_units, converged, budget_ms, stats, created_at
		 FROM plans WHERE fingerprint = $1 ORDER BY created_at DESC LIMIT 1`, fp)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(r rowScanner) (model.Plan, error) {
	var (
		pl               model.Plan
		setID            sql.NullString
		points, tour     []byte
		stopNames, stats []byte
		created          time.Time
	)
	if err := r.Scan(&pl.ID, &setID, &pl.Fingerprint, &points, &tour, &stopNames,
		&pl.TotalCostUnits, &pl.Converged, &pl.BudgetMs, &stats, &created); err != nil {
		return model.Plan{}, err
	}
	pl.PointSetID = setID.String
	for _, pair := range []struct {
		data []byte
		dst  any
	}{{points, &pl.Points}, {tour, &pl.Tour}, {stopNames, &pl.StopNames}, {stats, &pl.Stats}} {
		if err := json.Unmarshal(pair.data, pair.dst); err != nil {
			return model.Plan{}, err
		}
	}
	pl.CreatedAt = created.UTC().Format(time.RFC3339)
	return pl, nil
}

func toJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
