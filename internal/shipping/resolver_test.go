package shipping

import (
	"errors"
	"testing"

	"github.com/paydesk/reconciler/internal/models"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func cotonouSnapshot() Snapshot {
	return Snapshot{
		Zones: []models.ShippingZone{
			{ID: "cotonou", Name: "Cotonou", Cities: []string{"Cotonou"}, IsActive: true},
		},
		Rates: []models.ShippingRate{
			{
				ID:                    "cotonou-standard",
				ZoneID:                "cotonou",
				Name:                  "Standard",
				Price:                 2000,
				FreeShippingThreshold: int64Ptr(50000),
				DeliveryTime:          "24-48h",
				IsActive:              true,
			},
		},
	}
}

func TestResolve_FreeShippingThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subtotal int64
		wantCost int64
		wantFree bool
	}{
		{name: "above threshold ships free", subtotal: 60000, wantCost: 0, wantFree: true},
		{name: "exactly at threshold ships free", subtotal: 50000, wantCost: 0, wantFree: true},
		{name: "below threshold pays rate price", subtotal: 10000, wantCost: 2000, wantFree: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			quote, err := Resolve(cotonouSnapshot(), QuoteRequest{City: "Cotonou", Subtotal: tc.subtotal})
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if quote.Cost != tc.wantCost || quote.FreeShipping != tc.wantFree {
				t.Fatalf("Resolve() = {cost:%d free:%v}, want {cost:%d free:%v}", quote.Cost, quote.FreeShipping, tc.wantCost, tc.wantFree)
			}
			if quote.ZoneName != "Cotonou" || quote.RateName != "Standard" || quote.DeliveryTime != "24-48h" {
				t.Fatalf("Resolve() returned unexpected metadata: %+v", quote)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	_, err := Resolve(cotonouSnapshot(), QuoteRequest{City: "Unknown", Subtotal: 1000})
	if !errors.Is(err, ErrNoZone) {
		t.Fatalf("expected ErrNoZone, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound to accept ErrNoZone")
	}
}

func TestResolve_RequestedRateMissingBehavesAsNoRate(t *testing.T) {
	t.Parallel()

	_, err := Resolve(cotonouSnapshot(), QuoteRequest{City: "Cotonou", RateID: "express", Subtotal: 1000})
	if !errors.Is(err, ErrNoRate) {
		t.Fatalf("expected ErrNoRate, got %v", err)
	}
}

func TestResolve_MatchIsCaseAndSpaceInsensitive(t *testing.T) {
	t.Parallel()

	quote, err := Resolve(cotonouSnapshot(), QuoteRequest{City: "  cOtOnOu ", Subtotal: 100})
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if quote.Cost != 2000 {
		t.Fatalf("expected cost 2000, got %d", quote.Cost)
	}
}

func multiZoneSnapshot() Snapshot {
	return Snapshot{
		Zones: []models.ShippingZone{
			{ID: "benin", Name: "Benin", Countries: []string{"BJ", "Benin"}, IsActive: true},
			{ID: "porto-novo", Name: "Porto-Novo", Cities: []string{"Porto-Novo"}, IsActive: true},
			{ID: "closed", Name: "Closed", Cities: []string{"Porto-Novo"}, IsActive: false},
		},
		Rates: []models.ShippingRate{
			{ID: "benin-b", ZoneID: "benin", Name: "National B", Price: 3000, IsActive: true},
			{ID: "benin-a", ZoneID: "benin", Name: "National A", Price: 3000, IsActive: true},
			{ID: "benin-cheap", ZoneID: "benin", Name: "National cheap", Price: 1000, IsActive: false},
			{ID: "porto-novo-express", ZoneID: "porto-novo", Name: "Express", Price: 4500, IsActive: true},
			{ID: "porto-novo-bulk", ZoneID: "porto-novo", Name: "Bulk", Price: 500, MinOrderAmount: int64Ptr(100000), IsActive: true},
			{ID: "closed-rate", ZoneID: "closed", Name: "Closed", Price: 1, IsActive: true},
		},
	}
}

func TestResolve_SelectionOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      QuoteRequest
		wantRate string
		wantErr  error
	}{
		{
			name:     "city match outranks cheaper country match",
			req:      QuoteRequest{City: "Porto-Novo", Country: "BJ", Subtotal: 1000},
			wantRate: "porto-novo-express",
		},
		{
			name:     "min order amount unlocks cheaper city rate",
			req:      QuoteRequest{City: "Porto-Novo", Country: "BJ", Subtotal: 150000},
			wantRate: "porto-novo-bulk",
		},
		{
			name:     "country only match breaks price tie by id",
			req:      QuoteRequest{City: "Parakou", Country: "benin", Subtotal: 1000},
			wantRate: "benin-a",
		},
		{
			name:     "requested rate from country zone is honoured",
			req:      QuoteRequest{City: "Porto-Novo", Country: "BJ", RateID: "benin-b", Subtotal: 1000},
			wantRate: "benin-b",
		},
		{
			name:    "inactive rate cannot be requested",
			req:     QuoteRequest{City: "Parakou", Country: "BJ", RateID: "benin-cheap"},
			wantErr: ErrNoRate,
		},
		{
			name:    "inactive zone is ignored",
			req:     QuoteRequest{City: "Porto-Novo", RateID: "closed-rate"},
			wantErr: ErrNoRate,
		},
		{
			name:    "empty address matches nothing",
			req:     QuoteRequest{},
			wantErr: ErrNoZone,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			quote, err := Resolve(multiZoneSnapshot(), tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if quote.RateID != tc.wantRate {
				t.Fatalf("Resolve() picked %q, want %q", quote.RateID, tc.wantRate)
			}
		})
	}
}

func TestResolve_DeterministicAcrossSnapshotOrder(t *testing.T) {
	t.Parallel()

	snapshot := multiZoneSnapshot()
	reversed := Snapshot{
		Zones: make([]models.ShippingZone, 0, len(snapshot.Zones)),
		Rates: make([]models.ShippingRate, 0, len(snapshot.Rates)),
	}
	for i := len(snapshot.Zones) - 1; i >= 0; i-- {
		reversed.Zones = append(reversed.Zones, snapshot.Zones[i])
	}
	for i := len(snapshot.Rates) - 1; i >= 0; i-- {
		reversed.Rates = append(reversed.Rates, snapshot.Rates[i])
	}

	req := QuoteRequest{City: "Natitingou", Country: "BJ", Subtotal: 2000}
	first, err := Resolve(snapshot, req)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := Resolve(reversed, req)
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("Resolve() not deterministic: got %+v, want %+v", got, first)
		}
	}
}
