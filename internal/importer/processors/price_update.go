package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

func init() {
	importer.Register(priceUpdate{})
}

// priceUpdate repoints the price of an existing item or variant. The
// optional new-MRP value is applied to variants only.
type priceUpdate struct{}

func (priceUpdate) Type() importer.ImportType { return importer.TypePriceUpdate }

func (priceUpdate) ProcessRow(ctx context.Context, rc *importer.RowContext, row map[string]string) error {
	identifier := strings.TrimSpace(rc.Resolver.Value(row, fieldIdentifier))
	if identifier == "" {
		return importer.Invalid("identifier is required")
	}

	newPrice, err := parsePrice(rc.Resolver.Value(row, fieldNewPrice))
	if err != nil || newPrice <= 0 {
		return importer.Invalid("new price must be a number greater than zero")
	}

	hint := rc.Resolver.Value(row, fieldIdentifierType)
	item, variant, err := resolveTarget(ctx, rc.Stores, identifier, hint)
	if err != nil {
		return err
	}

	switch {
	case item != nil:
		if err := rc.Stores.Items.UpdatePrice(ctx, item.ID, newPrice); err != nil {
			return fmt.Errorf("update item price: %w", err)
		}
	case variant != nil:
		var mrp *float64
		if v, err := parsePrice(rc.Resolver.Value(row, fieldNewMRP)); err == nil && v > 0 {
			mrp = &v
		}
		if err := rc.Stores.Variants.UpdatePrice(ctx, variant.ID, newPrice, mrp); err != nil {
			return fmt.Errorf("update variant price: %w", err)
		}
	default:
		return importer.Invalid("item not found: %s", identifier)
	}

	return nil
}
