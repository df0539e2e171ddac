package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// Logical field names the strategies resolve against uploaded rows. Callers
// with differently-named headers either supply a column mapping or rely on
// the resolver's normalization chain.
const (
	fieldProductName    = "product_name"
	fieldPrice          = "price"
	fieldCategory       = "category"
	fieldDescription    = "description"
	fieldBrand          = "brand"
	fieldQuantity       = "quantity"
	fieldTags           = "tags"
	fieldItemID         = "item_id"
	fieldSKU            = "sku"
	fieldMRP            = "mrp"
	fieldIdentifier     = "identifier"
	fieldIdentifierType = "identifier_type"
	fieldNewPrice       = "new_price"
	fieldNewMRP         = "new_mrp"
	fieldAdjustmentType = "adjustment_type"
)

// parsePrice coerces a cell into a price. Spreadsheet exports deliver
// numbers with stray whitespace and thousand separators, so coercion is
// lenient.
func parsePrice(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, fmt.Errorf("empty value")
	}
	return cast.ToFloat64E(raw)
}

// parseQuantity coerces a cell into a whole quantity.
func parseQuantity(raw string) (int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, fmt.Errorf("empty value")
	}
	return cast.ToIntE(raw)
}

// quantityOrZero is parseQuantity for optional cells: anything unparseable
// reads as zero.
func quantityOrZero(raw string) int {
	n, err := parseQuantity(raw)
	if err != nil {
		return 0
	}
	return n
}

// splitTags parses a comma-delimited tag list, dropping blanks.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// resolveTarget resolves an identifier against the catalog using the
// optional identifier-type hint. Without a usable hint the fallback chain
// is item-by-id first, then variant-by-SKU. Exactly one of the returned
// pointers is non-nil on success; both nil means the identifier resolved to
// nothing in either store.
func resolveTarget(ctx context.Context, st importer.Stores, identifier, hint string) (*importer.Item, *importer.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "item":
		item, err := st.Items.Get(ctx, identifier)
		if err != nil {
			return nil, nil, fmt.Errorf("look up item %q: %w", identifier, err)
		}
		return item, nil, nil

	case "variant":
		v, err := st.Variants.Get(ctx, identifier)
		if err != nil {
			return nil, nil, fmt.Errorf("look up variant %q: %w", identifier, err)
		}
		return nil, v, nil

	default:
		item, err := st.Items.Get(ctx, identifier)
		if err != nil {
			return nil, nil, fmt.Errorf("look up item %q: %w", identifier, err)
		}
		if item != nil {
			return item, nil, nil
		}
		v, err := st.Variants.GetBySKU(ctx, identifier)
		if err != nil {
			return nil, nil, fmt.Errorf("look up variant by sku %q: %w", identifier, err)
		}
		return nil, v, nil
	}
}
