package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ShippingStore struct {
	pool *pgxpool.Pool
}

func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

// ActiveZones returns active zones ordered by id.
func (s *ShippingStore) ActiveZones(ctx context.Context) ([]ShippingZone, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, countries, cities, is_active
		FROM shipping_zones
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipping zones: %w", err)
	}
	defer rows.Close()

	var zones []ShippingZone
	for rows.Next() {
		var zone ShippingZone
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.Countries, &zone.Cities, &zone.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan shipping zone: %w", err)
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// ActiveRates returns active rates ordered by id.
func (s *ShippingStore) ActiveRates(ctx context.Context) ([]ShippingRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, zone_id, name, price, free_shipping_threshold, min_order_amount, delivery_time, is_active
		FROM shipping_rates
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipping rates: %w", err)
	}
	defer rows.Close()

	var rates []ShippingRate
	for rows.Next() {
		var (
			rate      ShippingRate
			threshold pgtype.Int8
			minimum   pgtype.Int8
		)
		if err := rows.Scan(&rate.ID, &rate.ZoneID, &rate.Name, &rate.Price, &threshold, &minimum, &rate.DeliveryTime, &rate.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan shipping rate: %w", err)
		}
		if threshold.Valid {
			value := threshold.Int64
			rate.FreeShippingThreshold = &value
		}
		if minimum.Valid {
			value := minimum.Int64
			rate.MinOrderAmount = &value
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
