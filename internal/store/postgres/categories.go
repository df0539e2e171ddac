package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryResolver answers default-category lookups from the categories
// table, falling back to a fixed name when none is flagged as default.
type CategoryResolver struct {
	pool     *pgxpool.Pool
	fallback string
}

func NewCategoryResolver(pool *pgxpool.Pool, fallback string) *CategoryResolver {
	if fallback == "" {
		fallback = "Uncategorized"
	}
	return &CategoryResolver{pool: pool, fallback: fallback}
}

func (r *CategoryResolver) DefaultCategory(ctx context.Context) (string, error) {
	const q = `SELECT name FROM categories WHERE is_default LIMIT 1`

	var name string
	err := r.pool.QueryRow(ctx, q).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.fallback, nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}
