package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const defaultListLimit = 50

type SQLiteDB struct {
	db *sql.DB
}

var _ RunRepository = (*SQLiteDB)(nil)

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps :memory: databases shared and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			metadata BLOB,
			status TEXT NOT NULL,
			plan BLOB,
			fallback INTEGER NOT NULL DEFAULT 0,
			error_kind TEXT,
			error_stage TEXT,
			error_message TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts the snapshot or replaces the stored one with the same id.
func (s *SQLiteDB) SaveRun(ctx context.Context, v models.RunView) error {
	metadata, err := json.Marshal(v.Disaster.Metadata)
	if err != nil {
		return fmt.Errorf("error encoding metadata: %w", err)
	}
	var plan []byte
	fallback := false
	if v.Plan != nil {
		if plan, err = json.Marshal(v.Plan); err != nil {
			return fmt.Errorf("error encoding plan: %w", err)
		}
		fallback = v.Plan.Fallback
	}
	var errKind, errStage, errMessage sql.NullString
	if v.Error != nil {
		errKind = sql.NullString{String: string(v.Error.Kind), Valid: true}
		errStage = sql.NullString{String: v.Error.Stage, Valid: v.Error.Stage != ""}
		errMessage = sql.NullString{String: v.Error.Message, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, severity, latitude, longitude, metadata, status, plan, fallback,
			error_kind, error_stage, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			plan = excluded.plan,
			fallback = excluded.fallback,
			error_kind = excluded.error_kind,
			error_stage = excluded.error_stage,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		v.ID, string(v.Disaster.Kind), v.Disaster.Severity.String(),
		v.Disaster.Location.Lat, v.Disaster.Location.Lon, metadata,
		string(v.Status), plan, fallback,
		errKind, errStage, errMessage,
		v.Disaster.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error saving run %s: %w", v.ID, err)
	}
	return nil
}

const selectRun = `
	SELECT id, kind, severity, latitude, longitude, metadata, status, plan,
		error_kind, error_stage, error_message, created_at, updated_at
	FROM runs`

// GetRun returns nil when the id is unknown.
func (s *SQLiteDB) GetRun(ctx context.Context, id string) (*models.RunView, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	v, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *SQLiteDB) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking run %s: %w", id, err)
	}
	return n > 0, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteDB) ListRuns(ctx context.Context, opts Filter) ([]models.RunView, error) {
	var (
		where []string
		args  []any
	)
	if opts.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*opts.Kind))
	}
	if opts.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*opts.Status))
	}
	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	query := selectRun
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunView
	for rows.Next() {
		v, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.RunView, error) {
	var (
		v                             models.RunView
		kind, severity, status        string
		metadata, plan                []byte
		errKind, errStage, errMessage sql.NullString
		createdAt, updatedAt          time.Time
	)
	err := sc.Scan(&v.ID, &kind, &severity, &v.Disaster.Location.Lat, &v.Disaster.Location.Lon,
		&metadata, &status, &plan, &errKind, &errStage, &errMessage, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning run: %w", err)
	}

	v.Disaster.Kind = models.DisasterKind(kind)
	v.Disaster.Severity, _ = models.ParseSeverity(severity)
	v.Disaster.CreatedAt = createdAt
	v.Status = models.RunStatus(status)
	v.UpdatedAt = updatedAt

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Disaster.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata of %s: %w", v.ID, err)
		}
	}
	if len(plan) > 0 {
		v.Plan = &models.Plan{}
		if err := json.Unmarshal(plan, v.Plan); err != nil {
			return nil, fmt.Errorf("error decoding plan of %s: %w", v.ID, err)
		}
	}
	if errKind.Valid {
		v.Error = &models.ErrorView{
			Kind:    models.ErrorKind(errKind.String),
			Stage:   errStage.String,
			Message: errMessage.String,
		}
	}
	return &v, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
