package processors

import (
	"context"
	"testing"

	"github.com/bazaarhq/catalog-import/internal/importer"
	"github.com/bazaarhq/catalog-import/internal/store/memory"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1250", 1250, false},
		{" 1250.50 ", 1250.5, false},
		{"1,250", 1250, false},
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePrice(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePrice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"25", 25, false},
		{"-5", -5, false},
		{" 1,000 ", 1000, false},
		{"", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQuantity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"handloom,cotton", []string{"handloom", "cotton"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{"", nil},
		{"  ", nil},
	}

	for _, tt := range tests {
		got := splitTags(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitTags(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitTags(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestResolveTarget(t *testing.T) {
	ctx := context.Background()

	items := memory.NewItemStore()
	variants := memory.NewVariantStore()
	stores := importer.Stores{Items: items, Variants: variants, Categories: memory.CategoryResolver{}}

	items.Create(ctx, &importer.Item{ID: "item-1", Name: "Saree"})
	variants.Create(ctx, &importer.Variant{ID: "var-1", ItemID: "item-1", SKU: "SKU-RED"})

	tests := []struct {
		name        string
		identifier  string
		hint        string
		wantItem    bool
		wantVariant bool
	}{
		{"item hint", "item-1", "item", true, false},
		{"variant hint", "var-1", "variant", false, true},
		{"no hint resolves item by id first", "item-1", "", true, false},
		{"no hint falls back to variant by sku", "SKU-RED", "", false, true},
		{"hint is case-insensitive", "item-1", " Item ", true, false},
		{"unknown identifier", "ghost", "", false, false},
		{"item hint does not try variants", "var-1", "item", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, variant, err := resolveTarget(ctx, stores, tt.identifier, tt.hint)
			if err != nil {
				t.Fatalf("resolveTarget() error = %v", err)
			}
			if (item != nil) != tt.wantItem {
				t.Errorf("item = %v, want present %v", item, tt.wantItem)
			}
			if (variant != nil) != tt.wantVariant {
				t.Errorf("variant = %v, want present %v", variant, tt.wantVariant)
			}
		})
	}
}
