package shipping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCatalog = `
zones:
  - id: cotonou
    name: Cotonou
    cities: [Cotonou]
    active: true
  - id: benin
    name: Benin
    countries: [BJ]
    active: true
rates:
  - id: cotonou-standard
    zone: cotonou
    name: Standard
    price: 2000
    free_shipping_threshold: 50000
    delivery_time: 24-48h
    active: true
  - id: benin-national
    zone: benin
    name: National
    price: 3500
    min_order_amount: 5000
    delivery_time: 3-5 days
    active: true
`

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog() unexpected error: %v", err)
	}
	if len(catalog.Zones) != 2 || len(catalog.Rates) != 2 {
		t.Fatalf("unexpected catalog size: zones=%d rates=%d", len(catalog.Zones), len(catalog.Rates))
	}

	rate := catalog.Rates[0]
	if rate.ZoneID != "cotonou" || rate.FreeShippingThreshold == nil || *rate.FreeShippingThreshold != 50000 {
		t.Fatalf("unexpected rate: %+v", rate)
	}
	if catalog.Rates[1].MinOrderAmount == nil || *catalog.Rates[1].MinOrderAmount != 5000 {
		t.Fatalf("expected min order amount on national rate")
	}

	quote, err := Resolve(catalog.Snapshot(), QuoteRequest{City: "Cotonou", Subtotal: 60000})
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if !quote.FreeShipping {
		t.Fatalf("expected free shipping, got %+v", quote)
	}
}

func TestValidateCatalog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "rate references unknown zone",
			content: `
zones:
  - {id: a, name: A, cities: [X], active: true}
rates:
  - {id: r, zone: b, price: 1, active: true}
`,
			wantErr: "unknown zone",
		},
		{
			name: "duplicate zone",
			content: `
zones:
  - {id: a, name: A, cities: [X], active: true}
  - {id: a, name: B, cities: [Y], active: true}
`,
			wantErr: "duplicate zone id",
		},
		{
			name: "negative price",
			content: `
zones:
  - {id: a, name: A, cities: [X], active: true}
rates:
  - {id: r, zone: a, price: -5, active: true}
`,
			wantErr: "price must be zero or positive",
		},
		{
			name: "zone without places",
			content: `
zones:
  - {id: a, name: A, active: true}
`,
			wantErr: "at least one city or country",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCatalog([]byte(tc.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shipping.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile() unexpected error: %v", err)
	}
	if catalog.Zones[0].Name != "Cotonou" {
		t.Fatalf("unexpected first zone: %+v", catalog.Zones[0])
	}

	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
