// Package sqlite persists run results in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// ErrNoRuns is returned by LatestRun when nothing has been stored yet.
var ErrNoRuns = errors.New("no runs stored")

// timeLayout has a fixed width so processed_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	processed_at   TEXT NOT NULL,
	width_m        REAL NOT NULL,
	offset_m       REAL NOT NULL,
	gravity        REAL NOT NULL,
	flow_divisor   REAL NOT NULL,
	upstream_seq   INTEGER NOT NULL,
	downstream_seq INTEGER NOT NULL,
	station_count  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stations (
	run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	cota_m      REAL NOT NULL,
	q_m3h       REAL NOT NULL,
	yi1_cm      REAL NOT NULL,
	yi2_cm      REAL NOT NULL,
	yi3_cm      REAL NOT NULL,
	delta_z_cm  REAL NOT NULL,
	eff_cota    REAL NOT NULL,
	q_m3_s      REAL NOT NULL,
	y_m         REAL NOT NULL,
	area        REAL NOT NULL,
	perimeter   REAL NOT NULL,
	radius      REAL NOT NULL,
	radius_root REAL NOT NULL,
	vel         REAL NOT NULL,
	froude      REAL NOT NULL,
	dym         REAL NOT NULL,
	energ_total REAL NOT NULL,
	reynolds    REAL NOT NULL,
	regime      TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS summary_values (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	variable_name TEXT NOT NULL,
	value         REAL NOT NULL,
	PRIMARY KEY (run_id, variable_name)
);
CREATE INDEX IF NOT EXISTS idx_runs_processed_at ON runs(processed_at);`

// StoredRun is the persisted header and summary of one run.
type StoredRun struct {
	RunID       string              `json:"run_id"`
	ProcessedAt time.Time           `json:"processed_at"`
	Bounds      domain.JumpBounds   `json:"bounds"`
	Stations    int                 `json:"stations"`
	Summary     []domain.SummaryRow `json:"summary"`
}

// Repository stores results keyed by run ID.
// It implements pipeline.ResultLoader.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers; SQLite allows one at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Repository{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (r *Repository) Name() string { return "sqlite" }

// Ping checks the database is reachable. It satisfies the readiness checker.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Load stores a result in one transaction. Storing the same run ID again
// replaces the earlier rows.
func (r *Repository) Load(ctx context.Context, result domain.Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	f, b := result.Flume, result.Summary.Bounds
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs(run_id, processed_at, width_m, offset_m, gravity, flow_divisor, upstream_seq, downstream_seq, station_count)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
		processed_at=excluded.processed_at,
		station_count=excluded.station_count`,
		result.RunID, result.ProcessedAt.UTC().Format(timeLayout),
		f.Width, f.ReferenceOffset, f.Gravity, f.FlowDivisor,
		b.Upstream, b.Downstream, len(result.Stations),
	)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", result.RunID, err)
	}

	for _, table := range []string{"stations", "summary_values"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", result.RunID); err != nil {
			return fmt.Errorf("clear %s for run %s: %w", table, result.RunID, err)
		}
	}

	if err := insertStations(ctx, tx, result.RunID, result.Stations); err != nil {
		return err
	}
	if err := insertSummary(ctx, tx, result.RunID, result.Summary.Rows()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", result.RunID, err)
	}
	r.logger.Info("result stored", "run_id", result.RunID, "stations", len(result.Stations))
	return nil
}

func insertStations(ctx context.Context, tx *sql.Tx, runID string, stations []domain.StationRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations(run_id, seq, cota_m, q_m3h, yi1_cm, yi2_cm, yi3_cm, delta_z_cm,
			eff_cota, q_m3_s, y_m, area, perimeter, radius, radius_root, vel, froude, dym, energ_total, reynolds, regime)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare station insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range stations {
		_, err := stmt.ExecContext(ctx,
			runID, s.Seq,
			s.Raw.PositionM, s.Raw.FlowM3H, s.Raw.Probe1CM, s.Raw.Probe2CM, s.Raw.Probe3CM, s.Raw.DeltaZCM,
			s.EffectivePosition, s.FlowRate, s.Depth,
			s.Area, s.Perimeter, s.Radius, s.RadiusRoot, s.Velocity, s.Froude, s.DynamicHead, s.TotalEnergy, s.Reynolds,
			string(s.Regime),
		)
		if err != nil {
			return fmt.Errorf("insert station %d: %w", s.Seq, err)
		}
	}
	return nil
}

func insertSummary(ctx context.Context, tx *sql.Tx, runID string, rows []domain.SummaryRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO summary_values(run_id, position, variable_name, value)
		VALUES(?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare summary insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, i+1, row.Name, row.Value); err != nil {
			return fmt.Errorf("insert summary %s: %w", row.Name, err)
		}
	}
	return nil
}

// LatestRun returns the most recently processed run with its summary rows.
func (r *Repository) LatestRun(ctx context.Context) (StoredRun, error) {
	var (
		run         StoredRun
		processedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, processed_at, upstream_seq, downstream_seq, station_count
		FROM runs
		ORDER BY processed_at DESC, run_id
		LIMIT 1`).Scan(&run.RunID, &processedAt, &run.Bounds.Upstream, &run.Bounds.Downstream, &run.Stations)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRun{}, ErrNoRuns
	}
	if err != nil {
		return StoredRun{}, fmt.Errorf("query latest run: %w", err)
	}
	if run.ProcessedAt, err = time.Parse(timeLayout, processedAt); err != nil {
		return StoredRun{}, fmt.Errorf("parse processed_at %q: %w", processedAt, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT variable_name, value
		FROM summary_values
		WHERE run_id = ?
		ORDER BY position`, run.RunID)
	if err != nil {
		return StoredRun{}, fmt.Errorf("query summary of run %s: %w", run.RunID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.SummaryRow
		if err := rows.Scan(&row.Name, &row.Value); err != nil {
			return StoredRun{}, fmt.Errorf("scan summary row: %w", err)
		}
		run.Summary = append(run.Summary, row)
	}
	if err := rows.Err(); err != nil {
		return StoredRun{}, fmt.Errorf("iterate summary rows: %w", err)
	}
	return run, nil
}
