// Package postgres implements metadatalog.Log on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/model"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

// New connects with the given DSN and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_deleted BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			metadata JSONB DEFAULT '{}'
		)`)
	if err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_user_id ON memories(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_is_deleted ON memories(is_deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_created_at ON memories(created_at)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	now := time.Now().UTC()
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, content, is_deleted, created_at, updated_at, metadata)
		VALUES ($1,$2,$3,FALSE,$4,$5,$6)`,
		m.ID, m.UserID, m.Content, now, now, string(metaJSON))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("memory %s: %w", m.ID, model.ErrDuplicateID)
		}
		return nil, err
	}

	out := *m
	out.IsDeleted = false
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE memories SET is_deleted = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, is_deleted, created_at, updated_at, metadata
		FROM memories WHERE id = $1`, id)
	m, err := scanMemory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, model.ErrNotFound)
	}
	return m, err
}

func (s *Store) ActiveIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM memories
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListForUser(ctx context.Context, userID string, limit int) ([]*model.Memory, error) {
	q := `
		SELECT id, user_id, content, is_deleted, created_at, updated_at, metadata
		FROM memories
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		m, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) StatsForUser(ctx context.Context, userID string) (*model.MemoryStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN is_deleted = FALSE THEN 1 END),
			COUNT(CASE WHEN is_deleted = TRUE THEN 1 END),
			MIN(created_at),
			MAX(created_at)
		FROM memories
		WHERE user_id = $1`, userID)

	var st model.MemoryStats
	var first, last sql.NullTime
	if err := row.Scan(&st.Total, &st.Active, &st.Deleted, &first, &last); err != nil {
		return nil, err
	}
	if first.Valid {
		t := first.Time
		st.FirstCreated = &t
	}
	if last.Valid {
		t := last.Time
		st.LastCreated = &t
	}
	return &st, nil
}

func scanMemory(scan func(dest ...interface{}) error) (*model.Memory, error) {
	var m model.Memory
	var metaRaw []byte
	if err := scan(&m.ID, &m.UserID, &m.Content, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt, &metaRaw); err != nil {
		return nil, err
	}
	if len(metaRaw) > 0 && string(metaRaw) != "null" {
		_ = json.Unmarshal(metaRaw, &m.Metadata)
	}
	return &m, nil
}

var _ metadatalog.Log = (*Store)(nil)
