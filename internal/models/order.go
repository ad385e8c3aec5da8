package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// OrderState is the pair of business and payment status that reconciliation reads and writes.
type OrderState struct {
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func (s OrderState) String() string {
	return string(s.Status) + "/" + string(s.PaymentStatus)
}

type Order struct {
	ID            uuid.UUID     `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	ShippingCost  int64         `json:"shipping_cost"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	GatewayID     string        `json:"gateway_id"`
	TransactionID string        `json:"transaction_id"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	CustomerPhone string        `json:"customer_phone"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaidAt        time.Time     `json:"paid_at"`
}

func (o *Order) State() OrderState {
	if o == nil {
		return OrderState{}
	}
	return OrderState{Status: o.Status, PaymentStatus: o.PaymentStatus}
}

func (o *Order) IsPaid() bool {
	return o != nil && o.PaymentStatus == PaymentStatusPaid
}

// Customer is the contact recorded on an order when a payment session is created.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
