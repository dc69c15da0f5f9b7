package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/HatiCode/dtsociety/pkg/table"
)

const schema = `CREATE TABLE IF NOT EXISTS datasets (
	session_id TEXT NOT NULL,
	id TEXT NOT NULL,
	state TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	geo_column TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id, state)
)`

// PostgresRepository stores datasets in a Postgres table with the table
// payload as JSONB.
type PostgresRepository struct {
	db *sqlx.DB
}

type datasetRow struct {
	SessionID string    `db:"session_id"`
	ID        string    `db:"id"`
	State     string    `db:"state"`
	Name      string    `db:"name"`
	GeoColumn string    `db:"geo_column"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// NewPostgresRepository connects to the database at dsn and creates the
// datasets table when missing.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn cannot be empty")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	r := NewPostgresRepositoryFromDB(db)
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresRepositoryFromDB wraps an existing connection pool.
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the datasets table.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate datasets table: %w", err)
	}
	return nil
}

// Put upserts d.
func (r *PostgresRepository) Put(ctx context.Context, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(d.Table)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset table: %w", err)
	}

	query := `INSERT INTO datasets (session_id, id, state, name, geo_column, payload, created_at)
	VALUES (:session_id, :id, :state, :name, :geo_column, :payload, :created_at)
	ON CONFLICT (session_id, id, state) DO UPDATE SET
		name = EXCLUDED.name,
		geo_column = EXCLUDED.geo_column,
		payload = EXCLUDED.payload,
		created_at = EXCLUDED.created_at`

	_, err = r.db.NamedExecContext(ctx, query, datasetRow{
		SessionID: d.Session,
		ID:        d.ID,
		State:     string(d.State),
		Name:      d.Name,
		GeoColumn: d.GeoColumn,
		Payload:   payload,
		CreatedAt: d.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to store dataset: %w", err)
	}
	return nil
}

// Get returns the processed dataset if present, else the original.
func (r *PostgresRepository) Get(ctx context.Context, session, id string) (Dataset, error) {
	query := `SELECT session_id, id, state, name, geo_column, payload, created_at
	FROM datasets
	WHERE session_id = $1 AND id = $2
	ORDER BY CASE state WHEN 'processed' THEN 0 ELSE 1 END
	LIMIT 1`

	var row datasetRow
	if err := r.db.GetContext(ctx, &row, query, session, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Dataset{}, notFound(session, id)
		}
		return Dataset{}, fmt.Errorf("failed to get dataset: %w", err)
	}
	return row.dataset()
}

// List returns the preferred state of every dataset in session.
func (r *PostgresRepository) List(ctx context.Context, session string) ([]Dataset, error) {
	query := `SELECT DISTINCT ON (id) session_id, id, state, name, geo_column, payload, created_at
	FROM datasets
	WHERE session_id = $1
	ORDER BY id, CASE state WHEN 'processed' THEN 0 ELSE 1 END`

	var rows []datasetRow
	if err := r.db.SelectContext(ctx, &rows, query, session); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	out := make([]Dataset, 0, len(rows))
	for _, row := range rows {
		d, err := row.dataset()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sortDatasets(out)
	return out, nil
}

// Delete removes every state of a dataset.
func (r *PostgresRepository) Delete(ctx context.Context, session, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE session_id = $1 AND id = $2`, session, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n == 0 {
		return notFound(session, id)
	}
	return nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (row datasetRow) dataset() (Dataset, error) {
	var t table.Table
	if err := json.Unmarshal(row.Payload, &t); err != nil {
		return Dataset{}, fmt.Errorf("failed to unmarshal dataset %q: %w", row.ID, err)
	}
	return Dataset{
		ID:        row.ID,
		Name:      row.Name,
		Session:   row.SessionID,
		State:     State(row.State),
		GeoColumn: row.GeoColumn,
		Table:     &t,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}
