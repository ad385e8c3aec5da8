package db

import "github.com/paydesk/reconciler/internal/models"

type Order = models.Order
type OrderState = models.OrderState
type ShippingZone = models.ShippingZone
type ShippingRate = models.ShippingRate
