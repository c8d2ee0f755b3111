package appointments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLegacyStore persists legacy per-patient appointment documents as
// jsonb rows.
type PostgresLegacyStore struct {
	db pgxDB
}

// NewPostgresLegacyStore creates a store backed by a pgx pool.
func NewPostgresLegacyStore(pool *pgxpool.Pool) *PostgresLegacyStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresLegacyStore{db: pool}
}

// NewPostgresLegacyStoreWithDB allows injecting mocks for tests.
func NewPostgresLegacyStoreWithDB(db pgxDB) *PostgresLegacyStore {
	return &PostgresLegacyStore{db: db}
}

// ListByUser returns all legacy documents for the user, newest first.
func (s *PostgresLegacyStore) ListByUser(ctx context.Context, userID string) ([]Document, error) {
	query := `
		SELECT doc_id, doc
		FROM legacy_appointments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list legacy: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			docID string
			raw   []byte
		)
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, fmt.Errorf("appointments: scan legacy: %w", err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("appointments: decode legacy doc %s: %w", docID, err)
		}
		docs = append(docs, Document{ID: docID, Fields: fields})
	}
	return docs, rows.Err()
}

// Insert writes a new legacy document.
func (s *PostgresLegacyStore) Insert(ctx context.Context, userID, docID string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("appointments: marshal legacy doc: %w", err)
	}
	query := `
		INSERT INTO legacy_appointments (user_id, doc_id, doc)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.Exec(ctx, query, userID, docID, data); err != nil {
		return fmt.Errorf("appointments: insert legacy doc: %w", err)
	}
	return nil
}

// Update merges the patch into the stored document.
func (s *PostgresLegacyStore) Update(ctx context.Context, userID, docID string, patch map[string]any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("appointments: marshal legacy patch: %w", err)
	}
	query := `
		UPDATE legacy_appointments
		SET doc = doc || $3::jsonb, updated_at = now()
		WHERE user_id = $1 AND doc_id = $2
	`
	ct, err := s.db.Exec(ctx, query, userID, docID, data)
	if err != nil {
		return fmt.Errorf("appointments: update legacy doc: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDocNotFound
	}
	return nil
}

var _ LegacyStore = (*PostgresLegacyStore)(nil)
