package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// VariantStore is the pgx-backed importer.VariantStore.
type VariantStore struct {
	pool *pgxpool.Pool
}

func NewVariantStore(pool *pgxpool.Pool) *VariantStore {
	return &VariantStore{pool: pool}
}

const variantColumns = `id, item_id, sku, attributes, price, mrp, quantity`

func (s *VariantStore) Get(ctx context.Context, id string) (*importer.Variant, error) {
	return s.getBy(ctx, `SELECT `+variantColumns+` FROM catalog_variants WHERE id = $1`, id)
}

func (s *VariantStore) GetBySKU(ctx context.Context, sku string) (*importer.Variant, error) {
	return s.getBy(ctx, `SELECT `+variantColumns+` FROM catalog_variants WHERE sku = $1`, sku)
}

func (s *VariantStore) getBy(ctx context.Context, q string, key string) (*importer.Variant, error) {
	var v importer.Variant
	err := s.pool.QueryRow(ctx, q, key).Scan(
		&v.ID, &v.ItemID, &v.SKU, &v.Attributes, &v.Price, &v.MRP, &v.Quantity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VariantStore) Create(ctx context.Context, v *importer.Variant) error {
	const q = `INSERT INTO catalog_variants (id, item_id, sku, attributes, price, mrp, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q, v.ID, v.ItemID, v.SKU, v.Attributes, v.Price, v.MRP, v.Quantity)
	return err
}

func (s *VariantStore) UpdatePrice(ctx context.Context, id string, price float64, mrp *float64) error {
	// COALESCE keeps the stored MRP when no new one was supplied.
	const q = `UPDATE catalog_variants
		SET price = $2, mrp = COALESCE($3, mrp), updated_at = now()
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, q, id, price, mrp)
	return err
}

func (s *VariantStore) SetStock(ctx context.Context, id string, quantity int) (int, error) {
	const q = `UPDATE catalog_variants SET quantity = GREATEST(0, $2::int), updated_at = now()
		WHERE id = $1 RETURNING quantity`
	return s.scanQuantity(ctx, q, id, quantity)
}

func (s *VariantStore) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	const q = `UPDATE catalog_variants SET quantity = GREATEST(0, quantity + $2), updated_at = now()
		WHERE id = $1 RETURNING quantity`
	return s.scanQuantity(ctx, q, id, delta)
}

func (s *VariantStore) scanQuantity(ctx context.Context, q string, id string, arg int) (int, error) {
	var quantity int
	err := s.pool.QueryRow(ctx, q, id, arg).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}
