package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// ItemStore is the pgx-backed importer.ItemStore.
type ItemStore struct {
	pool *pgxpool.Pool
}

func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

func (s *ItemStore) Get(ctx context.Context, id string) (*importer.Item, error) {
	const q = `SELECT id, vendor_id, name, description, category, brand, price,
		quantity, stock_status, tags
		FROM catalog_items WHERE id = $1`

	var item importer.Item
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&item.ID, &item.VendorID, &item.Name, &item.Description,
		&item.Category, &item.Brand, &item.Price, &item.Quantity,
		&item.StockStatus, &item.Tags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ItemStore) Create(ctx context.Context, item *importer.Item) error {
	const q = `INSERT INTO catalog_items
		(id, vendor_id, name, description, category, brand, price, quantity, stock_status, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		item.ID, item.VendorID, item.Name, item.Description,
		item.Category, item.Brand, item.Price, item.Quantity,
		item.StockStatus, item.Tags,
	)
	return err
}

func (s *ItemStore) UpdatePrice(ctx context.Context, id string, price float64) error {
	const q = `UPDATE catalog_items SET price = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, id, price)
	return err
}

func (s *ItemStore) SetStock(ctx context.Context, id string, quantity int) (int, error) {
	const q = `UPDATE catalog_items SET quantity = GREATEST(0, $2::int), updated_at = now()
		WHERE id = $1 RETURNING quantity`
	return s.scanQuantity(ctx, q, id, quantity)
}

func (s *ItemStore) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	const q = `UPDATE catalog_items SET quantity = GREATEST(0, quantity + $2), updated_at = now()
		WHERE id = $1 RETURNING quantity`
	return s.scanQuantity(ctx, q, id, delta)
}

func (s *ItemStore) UpdateStockStatus(ctx context.Context, id string, status string) error {
	const q = `UPDATE catalog_items SET stock_status = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, id, status)
	return err
}

func (s *ItemStore) scanQuantity(ctx context.Context, q string, id string, arg int) (int, error) {
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
