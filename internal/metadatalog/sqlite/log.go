package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/model"
)

// Store implements metadatalog.Log on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.Bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wires the store over an existing connection (used by tests and
// the factory).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Bootstrap creates the memories table and its indexes if missing.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_deleted BOOLEAN DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			metadata TEXT DEFAULT '{}'
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
		VALUES (?,?,?,0,?,?,?)`,
		m.ID, m.UserID, m.Content, now, now, string(metaJSON))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
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
	// Idempotent: zero rows affected is not an error.
	_, err := s.db.ExecContext(ctx, `
		UPDATE memories SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, is_deleted, created_at, updated_at, metadata
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, model.ErrNotFound)
	}
	return m, err
}

func (s *Store) ActiveIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM memories
		WHERE user_id = ? AND is_deleted = 0
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
		WHERE user_id = ? AND is_deleted = 0
		ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, q, userID)
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
	var st model.MemoryStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN is_deleted = 0 THEN 1 END),
			COUNT(CASE WHEN is_deleted = 1 THEN 1 END)
		FROM memories
		WHERE user_id = ?`, userID).Scan(&st.Total, &st.Active, &st.Deleted)
	if err != nil {
		return nil, err
	}
	if st.Total == 0 {
		return &st, nil
	}

	// MIN/MAX strip the created_at decltype, so the driver returns the
	// aggregate as a raw string. Read the boundary rows as plain columns
	// to keep the TIMESTAMP conversion.
	var first, last time.Time
	if err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM memories
		WHERE user_id = ? ORDER BY created_at ASC LIMIT 1`, userID).Scan(&first); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM memories
		WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, userID).Scan(&last); err != nil {
		return nil, err
	}
	st.FirstCreated = &first
	st.LastCreated = &last
	return &st, nil
}

func scanMemory(scan func(dest ...interface{}) error) (*model.Memory, error) {
	var m model.Memory
	var metaStr sql.NullString
	if err := scan(&m.ID, &m.UserID, &m.Content, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt, &metaStr); err != nil {
		return nil, err
	}
	if metaStr.Valid && metaStr.String != "" && metaStr.String != "null" {
		_ = json.Unmarshal([]byte(metaStr.String), &m.Metadata)
	}
	return &m, nil
}

var _ metadatalog.Log = (*Store)(nil)
