package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

func init() {
	importer.Register(catalogItems{})
}

// catalogItems creates one new catalog item per accepted row. There are no
// update-in-place semantics for this import type.
type catalogItems struct{}

func (catalogItems) Type() importer.ImportType { return importer.TypeCatalogItems }

func (catalogItems) ProcessRow(ctx context.Context, rc *importer.RowContext, row map[string]string) error {
	name := strings.TrimSpace(rc.Resolver.Value(row, fieldProductName))
	if name == "" {
		return importer.Invalid("product name is required")
	}

	price, err := parsePrice(rc.Resolver.Value(row, fieldPrice))
	if err != nil || price <= 0 {
		return importer.Invalid("price must be a number greater than zero")
	}

	category := strings.TrimSpace(rc.Resolver.Value(row, fieldCategory))
	if category == "" {
		category, err = rc.Stores.Categories.DefaultCategory(ctx)
		if err != nil {
			return fmt.Errorf("resolve default category: %w", err)
		}
	}

	quantity := quantityOrZero(rc.Resolver.Value(row, fieldQuantity))

	item := &importer.Item{
		ID:          uuid.New().String(),
		VendorID:    rc.Job.VendorID,
		Name:        name,
		Description: strings.TrimSpace(rc.Resolver.Value(row, fieldDescription)),
		Category:    category,
		Brand:       strings.TrimSpace(rc.Resolver.Value(row, fieldBrand)),
		Price:       price,
		Quantity:    quantity,
		StockStatus: importer.StockStatusFor(quantity),
		Tags:        splitTags(rc.Resolver.Value(row, fieldTags)),
	}

	if err := rc.Stores.Items.Create(ctx, item); err != nil {
		return fmt.Errorf("create catalog item: %w", err)
	}
	return nil
}
