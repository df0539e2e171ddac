package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

func init() {
	importer.Register(stockUpdate{})
}

// Stock adjustment modes. ABSOLUTE sets the quantity; RELATIVE adds the
// (possibly negative) delta. Both floor at zero.
const (
	adjustAbsolute = "ABSOLUTE"
	adjustRelative = "RELATIVE"
)

// stockUpdate adjusts the stock of an existing item or variant. Item stock
// changes re-derive the item's stock-status label.
type stockUpdate struct{}

func (stockUpdate) Type() importer.ImportType { return importer.TypeStockUpdate }

func (stockUpdate) ProcessRow(ctx context.Context, rc *importer.RowContext, row map[string]string) error {
	identifier := strings.TrimSpace(rc.Resolver.Value(row, fieldIdentifier))
	if identifier == "" {
		return importer.Invalid("identifier is required")
	}

	quantity, err := parseQuantity(rc.Resolver.Value(row, fieldQuantity))
	if err != nil {
		return importer.Invalid("quantity must be a whole number")
	}

	mode := strings.ToUpper(strings.TrimSpace(rc.Resolver.Value(row, fieldAdjustmentType)))
	switch mode {
	case "", adjustAbsolute:
		mode = adjustAbsolute
	case adjustRelative:
	default:
		return importer.Invalid("unknown adjustment type: %s", mode)
	}

	hint := rc.Resolver.Value(row, fieldIdentifierType)
	item, variant, err := resolveTarget(ctx, rc.Stores, identifier, hint)
	if err != nil {
		return err
	}

	switch {
	case item != nil:
		var newQty int
		if mode == adjustAbsolute {
			newQty, err = rc.Stores.Items.SetStock(ctx, item.ID, quantity)
		} else {
			newQty, err = rc.Stores.Items.AdjustStock(ctx, item.ID, quantity)
		}
		if err != nil {
			return fmt.Errorf("update item stock: %w", err)
		}
		if err := rc.Stores.Items.UpdateStockStatus(ctx, item.ID, importer.StockStatusFor(newQty)); err != nil {
			return fmt.Errorf("update item stock status: %w", err)
		}
	case variant != nil:
		if mode == adjustAbsolute {
			_, err = rc.Stores.Variants.SetStock(ctx, variant.ID, quantity)
		} else {
			_, err = rc.Stores.Variants.AdjustStock(ctx, variant.ID, quantity)
		}
		if err != nil {
			return fmt.Errorf("update variant stock: %w", err)
		}
	default:
		return importer.Invalid("item not found: %s", identifier)
	}

	return nil
}
