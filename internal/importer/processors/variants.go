package processors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

func init() {
	importer.Register(variants{})
}

// variantAttributeFields are the recognized attribute columns, in the order
// they contribute fragments to an auto-generated SKU.
var variantAttributeFields = []string{"size", "color", "material", "weight"}

// variants creates one new variant per accepted row under an existing
// parent catalog item.
type variants struct{}

func (variants) Type() importer.ImportType { return importer.TypeVariants }

func (variants) ProcessRow(ctx context.Context, rc *importer.RowContext, row map[string]string) error {
	itemID := strings.TrimSpace(rc.Resolver.Value(row, fieldItemID))
	if itemID == "" {
		return importer.Invalid("parent item id is required")
	}

	parent, err := rc.Stores.Items.Get(ctx, itemID)
	if err != nil {
		return fmt.Errorf("look up parent item %q: %w", itemID, err)
	}
	if parent == nil {
		return importer.Invalid("item not found: %s", itemID)
	}

	// Only non-empty attribute values are included; order is preserved for
	// SKU generation.
	attrs := make(map[string]string, len(variantAttributeFields))
	var attrOrder []string
	for _, field := range variantAttributeFields {
		if v := strings.TrimSpace(rc.Resolver.Value(row, field)); v != "" {
			attrs[field] = v
			attrOrder = append(attrOrder, field)
		}
	}

	sku := strings.TrimSpace(rc.Resolver.Value(row, fieldSKU))
	if sku == "" && rc.Job.Config.AutoGenerateIdentifiers {
		sku = generateSKU(itemID, attrOrder, attrs)
	}

	price, _ := parsePrice(rc.Resolver.Value(row, fieldPrice))
	mrp, _ := parsePrice(rc.Resolver.Value(row, fieldMRP))

	v := &importer.Variant{
		ID:         uuid.New().String(),
		ItemID:     itemID,
		SKU:        sku,
		Attributes: attrs,
		Price:      price,
		MRP:        mrp,
		Quantity:   quantityOrZero(rc.Resolver.Value(row, fieldQuantity)),
	}

	if err := rc.Stores.Variants.Create(ctx, v); err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

// generateSKU synthesizes a variant SKU: the uppercased parent id truncated
// to 6 characters, a 3-character uppercase fragment of each attribute value
// in order, and a millisecond-timestamp-derived 4-digit suffix for
// uniqueness.
func generateSKU(itemID string, order []string, attrs map[string]string) string {
	parts := make([]string, 0, len(order)+2)

	base := strings.ToUpper(itemID)
	if len(base) > 6 {
		base = base[:6]
	}
	parts = append(parts, base)

	for _, field := range order {
		frag := strings.ToUpper(attrs[field])
		if len(frag) > 3 {
			frag = frag[:3]
		}
		parts = append(parts, frag)
	}

	parts = append(parts, fmt.Sprintf("%04d", time.Now().UnixMilli()%10000))
	return strings.Join(parts, "-")
}
