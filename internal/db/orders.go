package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paydesk/reconciler/internal/models"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrStaleOrderState means the row changed between read and conditional write.
	ErrStaleOrderState = errors.New("order state changed concurrently")
)

const orderColumns = `id, order_number, amount, currency, shipping_cost, status, payment_status,
	gateway_id, transaction_id, customer_name, customer_email, customer_phone,
	created_at, updated_at, paid_at`

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

func (s *OrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, strings.TrimSpace(orderNumber))
	return scanOrder(row)
}

// GetByGatewayID finds the order a payment session was created for, including
// sessions that a later CreatePayment replaced.
func (s *OrderStore) GetByGatewayID(ctx context.Context, gatewayID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE gateway_id = $1
		   OR id = (SELECT order_id FROM order_payment_sessions WHERE gateway_id = $1)
		LIMIT 1`
	row := s.pool.QueryRow(ctx, query, strings.TrimSpace(gatewayID))
	return scanOrder(row)
}

// ListGatewaySessions returns the gateway ids created for an order, newest first.
func (s *OrderStore) ListGatewaySessions(ctx context.Context, orderID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gateway_id FROM order_payment_sessions
		WHERE order_id = $1
		ORDER BY created_at DESC, gateway_id DESC`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// AttachGateway makes gatewayID the order's current session and records it in the
// session history, along with the customer details sent to the gateway. A paid order
// keeps its gateway id.
func (s *OrderStore) AttachGateway(ctx context.Context, orderID uuid.UUID, gatewayID string, customer models.Customer) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE orders
			SET gateway_id = $1,
			    customer_name = COALESCE(NULLIF($2, ''), customer_name),
			    customer_email = COALESCE(NULLIF($3, ''), customer_email),
			    customer_phone = COALESCE(NULLIF($4, ''), customer_phone),
			    updated_at = NOW()
			WHERE id = $5 AND payment_status <> 'paid'
		`, gatewayID, customer.Name, customer.Email, customer.Phone, orderID)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("%w: order is already paid or does not exist", ErrInvalidStatusTransition)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_payment_sessions (gateway_id, order_id)
			VALUES ($1, $2)
			ON CONFLICT (gateway_id) DO NOTHING
		`, gatewayID, orderID)
		return err
	})
}

// CompareAndUpdate writes next only if the row still holds expected.
func (s *OrderStore) CompareAndUpdate(ctx context.Context, orderID uuid.UUID, expected, next OrderState, transactionID string) error {
	query := `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    transaction_id = COALESCE(NULLIF($3, ''), transaction_id),
		    paid_at = CASE WHEN $2 = 'paid' THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5 AND payment_status = $6
	`
	cmdTag, err := s.pool.Exec(ctx, query,
		string(next.Status), string(next.PaymentStatus), transactionID,
		orderID, string(expected.Status), string(expected.PaymentStatus),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrStaleOrderState, expected)
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order         Order
		status        string
		paymentStatus string
		gatewayID     pgtype.Text
		transactionID pgtype.Text
		customerName  pgtype.Text
		customerEmail pgtype.Text
		customerPhone pgtype.Text
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
		paidAt        pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.Amount, &order.Currency, &order.ShippingCost,
		&status, &paymentStatus, &gatewayID, &transactionID,
		&customerName, &customerEmail, &customerPhone,
		&createdAt, &updatedAt, &paidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	order.PaymentStatus = models.PaymentStatus(paymentStatus)
	order.GatewayID = gatewayID.String
	order.TransactionID = transactionID.String
	order.CustomerName = customerName.String
	order.CustomerEmail = customerEmail.String
	order.CustomerPhone = customerPhone.String
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}

	return &order, nil
}
