package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realjkeee/zenbot/internal/contracts"
)

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS darwin;

CREATE TABLE IF NOT EXISTS darwin.generations (
	run_id      TEXT        NOT NULL,
	generation  INTEGER     NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	dispatched  INTEGER     NOT NULL,
	failed      INTEGER     NOT NULL,
	PRIMARY KEY (run_id, generation)
);

CREATE TABLE IF NOT EXISTS darwin.results (
	run_id       TEXT             NOT NULL,
	generation   INTEGER          NOT NULL,
	rank         INTEGER          NOT NULL,
	strategy     TEXT             NOT NULL,
	phenotype    TEXT             NOT NULL,
	genes        JSONB            NOT NULL,
	fitness      DOUBLE PRECISION NOT NULL,
	vs_buy_hold  DOUBLE PRECISION NOT NULL,
	end_balance  DOUBLE PRECISION NOT NULL,
	buy_hold     DOUBLE PRECISION NOT NULL,
	roi          DOUBLE PRECISION NOT NULL,
	wl_ratio     DOUBLE PRECISION NOT NULL,
	frequency    DOUBLE PRECISION NOT NULL,
	wins         INTEGER          NOT NULL,
	losses       INTEGER          NOT NULL,
	error_rate   DOUBLE PRECISION NOT NULL,
	days         INTEGER          NOT NULL,
	period       TEXT             NOT NULL,
	order_type   TEXT             NOT NULL,
	params       TEXT             NOT NULL,
	PRIMARY KEY (run_id, generation, rank),
	FOREIGN KEY (run_id, generation) REFERENCES darwin.generations (run_id, generation) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_strategy_fitness ON darwin.results (strategy, fitness DESC);
`

const insertResultSQL = `
	INSERT INTO darwin.results (
		run_id, generation, rank, strategy, phenotype, genes, fitness, vs_buy_hold,
		end_balance, buy_hold, roi, wl_ratio, frequency, wins, losses, error_rate,
		days, period, order_type, params
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
`

// StoredResult is one row of darwin.results
type StoredResult struct {
	RunID      string            `json:"run_id"`
	Generation int               `json:"generation"`
	Rank       int               `json:"rank"`
	Strategy   string            `json:"strategy"`
	Key        string            `json:"key"`
	Genes      contracts.GeneSet `json:"genes"`
	Fitness    float64           `json:"fitness"`
	VsBuyHold  float64           `json:"vs_buy_hold"`
	EndBalance float64           `json:"end_balance"`
	WinLoss    contracts.Ratio   `json:"wl_ratio"`
	Frequency  float64           `json:"frequency"`
	Days       int               `json:"days"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Repository persists generation results in PostgreSQL
// ⭐ SSOT: 세대 결과 DB 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new results repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Name implements contracts.ResultSink
func (r *Repository) Name() string {
	return "postgres"
}

// EnsureSchema creates the darwin schema and tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create darwin schema: %w", err)
	}
	return nil
}

// WriteResults implements contracts.ResultSink.
// A generation is written in one transaction; rewriting it replaces the previous rows.
func (r *Repository) WriteResults(ctx context.Context, record *contracts.GenerationRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO darwin.generations (run_id, generation, started_at, finished_at, dispatched, failed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, generation) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			dispatched = EXCLUDED.dispatched,
			failed = EXCLUDED.failed
	`, record.RunID, record.Generation, record.StartedAt, record.FinishedAt, record.Dispatched, record.Failed)
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM darwin.results WHERE run_id = $1 AND generation = $2", record.RunID, record.Generation)
	if err != nil {
		return fmt.Errorf("failed to delete old results: %w", err)
	}

	if len(record.Results) > 0 {
		batch := &pgx.Batch{}
		for i, res := range record.Results {
			args, err := resultArgs(record, i+1, res)
			if err != nil {
				return err
			}
			batch.Queue(insertResultSQL, args...)
		}

		br := tx.SendBatch(ctx, batch)
		for range record.Results {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert result: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TopResults returns the best stored results, optionally for one strategy
func (r *Repository) TopResults(ctx context.Context, strategy string, limit int) ([]StoredResult, error) {
	query := `
		SELECT r.run_id, r.generation, r.rank, r.strategy, r.phenotype, r.genes, r.fitness,
			r.vs_buy_hold, r.end_balance, r.wl_ratio, r.frequency, r.days, g.finished_at
		FROM darwin.results r
		JOIN darwin.generations g ON g.run_id = r.run_id AND g.generation = r.generation
		WHERE ($1 = '' OR r.strategy = $1)
		ORDER BY r.fitness DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]StoredResult, 0)
	for rows.Next() {
		var (
			res   StoredResult
			genes []byte
			wl    float64
		)
		err := rows.Scan(&res.RunID, &res.Generation, &res.Rank, &res.Strategy, &res.Key, &genes,
			&res.Fitness, &res.VsBuyHold, &res.EndBalance, &wl, &res.Frequency, &res.Days, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal(genes, &res.Genes); err != nil {
			return nil, fmt.Errorf("failed to decode genes: %w", err)
		}
		res.WinLoss = contracts.Ratio(wl)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// resultArgs maps one scored result onto insertResultSQL's parameters
func resultArgs(record *contracts.GenerationRecord, rank int, res contracts.ScoredResult) ([]any, error) {
	genes, err := json.Marshal(res.Genes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode genes: %w", err)
	}
	return []any{
		record.RunID, record.Generation, rank, res.Strategy, res.Key, genes, res.Fitness,
		res.Result.VsBuyHold, res.Result.EndBalance, res.Result.BuyHold, res.Result.ROI,
		float64(res.Result.WinLossRatio), res.Result.Frequency, res.Result.Wins, res.Result.Losses,
		res.Result.ErrorRate, res.Result.Days, res.Result.Period, res.Result.OrderType, res.Result.Params,
	}, nil
}
