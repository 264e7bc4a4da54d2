package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"locrepos/logger"
	"locrepos/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS repository_snapshots (
		run_id        UUID        NOT NULL,
		username      TEXT        NOT NULL,
		repo_name     TEXT        NOT NULL,
		creation_date TEXT        NOT NULL DEFAULT '',
		stars         INTEGER     NOT NULL DEFAULT 0,
		forks         INTEGER     NOT NULL DEFAULT 0,
		last_update   TEXT        NOT NULL DEFAULT '',
		description   TEXT,
		topics        TEXT[]      NOT NULL DEFAULT '{}',
		collected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, username, repo_name)
	)
`

const insertSnapshot = `
	INSERT INTO repository_snapshots (
		run_id, username, repo_name, creation_date,
		stars, forks, last_update, description, topics
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (run_id, username, repo_name) DO UPDATE SET
		creation_date = EXCLUDED.creation_date,
		stars = EXCLUDED.stars,
		forks = EXCLUDED.forks,
		last_update = EXCLUDED.last_update,
		description = EXCLUDED.description,
		topics = EXCLUDED.topics
`

const selectByUsername = `
	SELECT repo_name, username, creation_date, stars, forks,
		last_update, description, topics
	FROM repository_snapshots
	WHERE run_id = $1 AND username = $2
	ORDER BY repo_name
`

// snapshotRow mirrors a stored row; topics need pq's array scanner.
type snapshotRow struct {
	RepoName     string         `db:"repo_name"`
	Username     string         `db:"username"`
	CreationDate string         `db:"creation_date"`
	Stars        int            `db:"stars"`
	Forks        int            `db:"forks"`
	LastUpdate   string         `db:"last_update"`
	Description  *string        `db:"description"`
	Topics       pq.StringArray `db:"topics"`
}

func (r snapshotRow) toModel() models.Repository {
	topics := []string(r.Topics)
	if topics == nil {
		topics = []string{}
	}
	return models.Repository{
		RepoName:     r.RepoName,
		Username:     r.Username,
		CreationDate: r.CreationDate,
		Stars:        r.Stars,
		Forks:        r.Forks,
		LastUpdate:   r.LastUpdate,
		Description:  r.Description,
		Topics:       topics,
	}
}

// EnsureSchema creates the snapshot table if it does not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// StoreRun writes all records of one collection run in a single transaction
func (db *DB) StoreRun(ctx context.Context, runID uuid.UUID, records []models.Repository) error {
	if runID == uuid.Nil {
		return fmt.Errorf("%w: run id cannot be empty", ErrInvalidInput)
	}
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.Username == "" {
			return fmt.Errorf("%w: repository %q has no username", ErrInvalidInput, r.RepoName)
		}
	}

	logger.Info("Storing run", zap.String("run_id", runID.String()), zap.Int("count", len(records)))

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, insertSnapshot)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		topics := r.Topics
		if topics == nil {
			topics = []string{}
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			r.Username,
			r.RepoName,
			r.CreationDate,
			r.Stars,
			r.Forks,
			r.LastUpdate,
			r.Description,
			pq.Array(topics),
		); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", r.Username, r.RepoName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	logger.Info("Run stored", zap.String("run_id", runID.String()), zap.Int("count", len(records)))
	return nil
}

// GetByUsername returns the stored repositories of username within a run
func (db *DB) GetByUsername(ctx context.Context, runID uuid.UUID, username string) ([]models.Repository, error) {
	if runID == uuid.Nil || username == "" {
		return nil, fmt.Errorf("%w: run id and username cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, selectByUsername)
	if err != nil {
		return nil, err
	}

	var rows []snapshotRow
	if err := stmt.SelectContext(ctx, &rows, runID, username); err != nil {
		return nil, fmt.Errorf("failed to get repositories of %s: %w", username, err)
	}

	records := make([]models.Repository, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// CountByRun returns how many records a run stored
func (db *DB) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	if runID == uuid.Nil {
		return 0, fmt.Errorf("%w: run id cannot be empty", ErrInvalidInput)
	}

	var count int
	query := `SELECT COUNT(*) FROM repository_snapshots WHERE run_id = $1`
	if err := db.conn.GetContext(ctx, &count, query, runID); err != nil {
		return 0, fmt.Errorf("failed to count run %s: %w", runID, err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return count, nil
}
