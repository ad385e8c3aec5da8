// Package shipping resolves a delivery address to a shipping zone and rate.
package shipping

import (
	"errors"
	"sort"
	"strings"

	"github.com/paydesk/reconciler/internal/models"
)

var (
	// ErrNoZone means no active zone covers the address. It is a normal negative result.
	ErrNoZone = errors.New("no shipping zone for this location")
	// ErrNoRate means zones matched but none of their rates apply.
	ErrNoRate = errors.New("no shipping rate for this location")
)

// Snapshot is a point-in-time read of the zone and rate tables.
type Snapshot struct {
	Zones []models.ShippingZone
	Rates []models.ShippingRate
}

type QuoteRequest struct {
	City     string
	Country  string
	Subtotal int64
	RateID   string
}

type Quote struct {
	Cost         int64  `json:"shippingCost"`
	FreeShipping bool   `json:"freeShipping"`
	DeliveryTime string `json:"deliveryTime"`
	RateID       string `json:"shippingMethodId"`
	RateName     string `json:"rateName"`
	ZoneName     string `json:"zoneName"`
}

// IsNotFound reports whether err is one of the negative lookup results.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoZone) || errors.Is(err, ErrNoRate)
}

type matchKind int

const (
	matchCity matchKind = iota
	matchCountry
)

type candidate struct {
	rate  models.ShippingRate
	zone  models.ShippingZone
	match matchKind
}

// Resolve picks one rate for the address.
//
// Zones matched on city outrank zones matched only on country. Within the same
// match kind the cheapest rate wins and ties fall back to the rate ID, so equal
// inputs always yield the same quote.
func Resolve(snapshot Snapshot, req QuoteRequest) (Quote, error) {
	city := normalizePlace(req.City)
	country := normalizePlace(req.Country)

	matched := make(map[string]matchKind)
	zones := make(map[string]models.ShippingZone)
	for _, zone := range snapshot.Zones {
		if !zone.IsActive {
			continue
		}
		switch {
		case city != "" && containsPlace(zone.Cities, city):
			matched[zone.ID] = matchCity
		case country != "" && containsPlace(zone.Countries, country):
			matched[zone.ID] = matchCountry
		default:
			continue
		}
		zones[zone.ID] = zone
	}
	if len(matched) == 0 {
		return Quote{}, ErrNoZone
	}

	requestedRate := strings.TrimSpace(req.RateID)
	candidates := make([]candidate, 0, len(snapshot.Rates))
	for _, rate := range snapshot.Rates {
		if !rate.IsActive {
			continue
		}
		kind, ok := matched[rate.ZoneID]
		if !ok {
			continue
		}
		if requestedRate != "" && rate.ID != requestedRate {
			continue
		}
		if rate.MinOrderAmount != nil && req.Subtotal < *rate.MinOrderAmount {
			continue
		}
		candidates = append(candidates, candidate{rate: rate, zone: zones[rate.ZoneID], match: kind})
	}
	if len(candidates) == 0 {
		return Quote{}, ErrNoRate
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.match != b.match {
			return a.match < b.match
		}
		if a.rate.Price != b.rate.Price {
			return a.rate.Price < b.rate.Price
		}
		return a.rate.ID < b.rate.ID
	})

	chosen := candidates[0]
	free := chosen.rate.FreeShippingThreshold != nil && req.Subtotal >= *chosen.rate.FreeShippingThreshold
	cost := chosen.rate.Price
	if free {
		cost = 0
	}

	return Quote{
		Cost:         cost,
		FreeShipping: free,
		DeliveryTime: chosen.rate.DeliveryTime,
		RateID:       chosen.rate.ID,
		RateName:     chosen.rate.Name,
		ZoneName:     chosen.zone.Name,
	}, nil
}

func normalizePlace(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func containsPlace(places []string, want string) bool {
	for _, place := range places {
		if normalizePlace(place) == want {
			return true
		}
	}
	return false
}
