package providers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository lists bookable providers.
type Repository interface {
	ListActive(ctx context.Context) ([]Provider, error)
}

type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository reads the provider directory from Postgres.
type PostgresRepository struct {
	db pgxDB
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("providers: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListActive returns providers currently accepting portal bookings.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Provider, error) {
	query := `
		SELECT id, name, specialty, telehealth, in_person
		FROM providers
		WHERE active
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("providers: list active: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.Telehealth, &p.InPerson); err != nil {
			return nil, fmt.Errorf("providers: scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ Repository = (*PostgresRepository)(nil)
