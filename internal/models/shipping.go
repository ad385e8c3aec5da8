package models

type ShippingZone struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Countries []string `json:"countries" yaml:"countries"`
	Cities    []string `json:"cities" yaml:"cities"`
	IsActive  bool     `json:"is_active" yaml:"active"`
}

type ShippingRate struct {
	ID                    string `json:"id" yaml:"id"`
	ZoneID                string `json:"zone_id" yaml:"zone"`
	Name                  string `json:"name" yaml:"name"`
	Price                 int64  `json:"price" yaml:"price"`
	FreeShippingThreshold *int64 `json:"free_shipping_threshold" yaml:"free_shipping_threshold"`
	MinOrderAmount        *int64 `json:"min_order_amount" yaml:"min_order_amount"`
	DeliveryTime          string `json:"delivery_time" yaml:"delivery_time"`
	IsActive              bool   `json:"is_active" yaml:"active"`
}
