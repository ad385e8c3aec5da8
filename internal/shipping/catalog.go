package shipping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paydesk/reconciler/internal/models"
)

// Catalog is the on-disk form of the shipping tables:
//
//	zones:
//	  - id: cotonou
//	    name: Cotonou
//	    cities: [Cotonou]
//	    active: true
//	rates:
//	  - id: cotonou-standard
//	    zone: cotonou
//	    price: 2000
//	    free_shipping_threshold: 50000
//	    active: true
type Catalog struct {
	Zones []models.ShippingZone `yaml:"zones"`
	Rates []models.ShippingRate `yaml:"rates"`
}

func (c *Catalog) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{Zones: c.Zones, Rates: c.Rates}
}

func ParseCatalog(content []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ValidateCatalog(&catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func LoadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shipping catalog: %w", err)
	}
	return ParseCatalog(content)
}

func ValidateCatalog(catalog *Catalog) error {
	if catalog == nil {
		return fmt.Errorf("shipping catalog is required")
	}

	zoneIDs := make(map[string]bool, len(catalog.Zones))
	for i, zone := range catalog.Zones {
		if err := validateZone(zone); err != nil {
			return fmt.Errorf("zone %d validation failed: %w", i, err)
		}
		if zoneIDs[zone.ID] {
			return fmt.Errorf("duplicate zone id: %s", zone.ID)
		}
		zoneIDs[zone.ID] = true
	}

	rateIDs := make(map[string]bool, len(catalog.Rates))
	for i, rate := range catalog.Rates {
		if err := validateRate(rate); err != nil {
			return fmt.Errorf("rate %d validation failed: %w", i, err)
		}
		if !zoneIDs[rate.ZoneID] {
			return fmt.Errorf("rate %s references unknown zone %s", rate.ID, rate.ZoneID)
		}
		if rateIDs[rate.ID] {
			return fmt.Errorf("duplicate rate id: %s", rate.ID)
		}
		rateIDs[rate.ID] = true
	}

	return nil
}

func validateZone(zone models.ShippingZone) error {
	if strings.TrimSpace(zone.ID) == "" {
		return fmt.Errorf("zone id is required")
	}
	if strings.TrimSpace(zone.Name) == "" {
		return fmt.Errorf("zone name is required")
	}
	if len(zone.Cities) == 0 && len(zone.Countries) == 0 {
		return fmt.Errorf("zone must list at least one city or country")
	}
	return nil
}

func validateRate(rate models.ShippingRate) error {
	if strings.TrimSpace(rate.ID) == "" {
		return fmt.Errorf("rate id is required")
	}
	if strings.TrimSpace(rate.ZoneID) == "" {
		return fmt.Errorf("rate zone is required")
	}
	if rate.Price < 0 {
		return fmt.Errorf("rate price must be zero or positive")
	}
	if rate.FreeShippingThreshold != nil && *rate.FreeShippingThreshold < 0 {
		return fmt.Errorf("free shipping threshold must be zero or positive")
	}
	if rate.MinOrderAmount != nil && *rate.MinOrderAmount < 0 {
		return fmt.Errorf("minimum order amount must be zero or positive")
	}
	return nil
}
