package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasklift/backend/internal/models"
)

type PackageRepo struct {
	pool *pgxpool.Pool
}

func NewPackageRepo(pool *pgxpool.Pool) *PackageRepo {
	return &PackageRepo{pool: pool}
}

func (r *PackageRepo) Create(ctx context.Context, p *models.Package) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO packages (id, name, type, description, price_cents, tasks_per_month, features, is_popular)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Name, p.Type, p.Description, p.PriceCents, p.TasksPerMonth, p.Features, p.IsPopular)
	return err
}

func (r *PackageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	var p models.Package
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, description, price_cents, tasks_per_month, features, is_popular
		FROM packages WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.PriceCents, &p.TasksPerMonth, &p.Features, &p.IsPopular)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByType returns the package for a tier; the starter tier is the reference
// price for referral bonuses.
func (r *PackageRepo) GetByType(ctx context.Context, pkgType string) (*models.Package, error) {
	var p models.Package
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, description, price_cents, tasks_per_month, features, is_popular
		FROM packages WHERE type = $1
	`, pkgType).Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.PriceCents, &p.TasksPerMonth, &p.Features, &p.IsPopular)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PackageRepo) List(ctx context.Context) ([]*models.Package, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, description, price_cents, tasks_per_month, features, is_popular
		FROM packages ORDER BY price_cents ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Package
	for rows.Next() {
		var p models.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.PriceCents, &p.TasksPerMonth, &p.Features, &p.IsPopular); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// Count returns the number of packages; used to decide whether to seed.
func (r *PackageRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n)
	return n, err
}
