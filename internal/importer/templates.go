package importer

import "fmt"

// TemplateColumn describes one expected column of an import type, used by
// callers to build a column mapping before submitting. The processing path
// never consumes these.
type TemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example,omitempty"`
}

// Template is the column catalog for one import type.
type Template struct {
	ImportType ImportType       `json:"importType"`
	Columns    []TemplateColumn `json:"columns"`
}

var templates = map[ImportType]Template{
	TypeCatalogItems: {
		ImportType: TypeCatalogItems,
		Columns: []TemplateColumn{
			{Name: "product_name", Description: "Product name", Required: true, Type: "string", Example: "Handwoven Cotton Saree"},
			{Name: "price", Description: "Selling price, must be greater than zero", Required: true, Type: "number", Example: "1250"},
			{Name: "category", Description: "Category name; falls back to the vendor default when empty", Type: "string", Example: "Apparel"},
			{Name: "description", Description: "Product description", Type: "string"},
			{Name: "brand", Description: "Brand name", Type: "string"},
			{Name: "quantity", Description: "Initial stock quantity", Type: "number", Example: "25"},
			{Name: "tags", Description: "Comma-separated tags", Type: "string", Example: "handloom,cotton"},
		},
	},
	TypeVariants: {
		ImportType: TypeVariants,
		Columns: []TemplateColumn{
			{Name: "item_id", Description: "Parent catalog item id; must already exist", Required: true, Type: "string"},
			{Name: "sku", Description: "Variant SKU; auto-generated when omitted and auto-generation is enabled", Type: "string", Example: "SAREE1-RED-0042"},
			{Name: "size", Description: "Size attribute", Type: "string", Example: "M"},
			{Name: "color", Description: "Color attribute", Type: "string", Example: "Red"},
			{Name: "material", Description: "Material attribute", Type: "string", Example: "Cotton"},
			{Name: "weight", Description: "Weight attribute", Type: "string", Example: "450g"},
			{Name: "price", Description: "Variant price", Type: "number", Example: "1350"},
			{Name: "mrp", Description: "Maximum retail price", Type: "number", Example: "1499"},
			{Name: "quantity", Description: "Initial stock quantity", Type: "number", Example: "10"},
		},
	},
	TypePriceUpdate: {
		ImportType: TypePriceUpdate,
		Columns: []TemplateColumn{
			{Name: "identifier", Description: "Item id, or variant id/SKU", Required: true, Type: "string"},
			{Name: "identifier_type", Description: `Optional hint: "item" or "variant"; omitted identifiers try item-by-id then variant-by-SKU`, Type: "string", Example: "item"},
			{Name: "new_price", Description: "New selling price", Required: true, Type: "number", Example: "999"},
			{Name: "new_mrp", Description: "New maximum retail price; applied to variants only", Type: "number", Example: "1199"},
		},
	},
	TypeStockUpdate: {
		ImportType: TypeStockUpdate,
		Columns: []TemplateColumn{
			{Name: "identifier", Description: "Item id, or variant id/SKU", Required: true, Type: "string"},
			{Name: "identifier_type", Description: `Optional hint: "item" or "variant"`, Type: "string", Example: "variant"},
			{Name: "quantity", Description: "Quantity to set or add, depending on adjustment mode", Required: true, Type: "number", Example: "-5"},
			{Name: "adjustment_type", Description: `"ABSOLUTE" sets the quantity (floored at 0); "RELATIVE" adds it (floored at 0). Defaults to ABSOLUTE`, Type: "string", Example: "RELATIVE"},
		},
	},
}

// TemplateFor returns the column catalog for the import type.
func TemplateFor(t ImportType) (Template, error) {
	tpl, ok := templates[t]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownImportType, t)
	}
	return tpl, nil
}

// AllTemplates returns the catalogs for every registered import type, in
// registry order.
func AllTemplates() []Template {
	types := RegisteredTypes()
	out := make([]Template, 0, len(types))
	for _, t := range types {
		if tpl, ok := templates[t]; ok {
			out = append(out, tpl)
		}
	}
	return out
}
