package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/paydesk/reconciler/internal/db"
	"github.com/paydesk/reconciler/internal/gateway"
	"github.com/paydesk/reconciler/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders   map[uuid.UUID]*db.Order
	sessions map[uuid.UUID][]string
	updates  int

	// beforeUpdate runs once, ahead of the next CompareAndUpdate.
	beforeUpdate func(r *fakeOrderRepo)
	updateErr    error
}

func newFakeOrderRepo(orders ...*db.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{
		orders:   make(map[uuid.UUID]*db.Order),
		sessions: make(map[uuid.UUID][]string),
	}
	for _, order := range orders {
		copied := *order
		r.orders[order.ID] = &copied
	}
	return r
}

func (r *fakeOrderRepo) get(id uuid.UUID) *db.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *r.orders[id]
	return &copied
}

func (r *fakeOrderRepo) setState(id uuid.UUID, state db.OrderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].Status = state.Status
	r.orders[id].PaymentStatus = state.PaymentStatus
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*db.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*db.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			copied := *order
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeOrderRepo) GetByGatewayID(_ context.Context, gatewayID string) (*db.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, order := range r.orders {
		if order.GatewayID == gatewayID || slices.Contains(r.sessions[id], gatewayID) {
			copied := *order
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeOrderRepo) ListGatewaySessions(_ context.Context, orderID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := slices.Clone(r.sessions[orderID])
	slices.Reverse(history)
	return history, nil
}

func (r *fakeOrderRepo) AttachGateway(_ context.Context, id uuid.UUID, gatewayID string, customer models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.IsPaid() {
		return db.ErrInvalidStatusTransition
	}
	order.GatewayID = gatewayID
	r.sessions[id] = append(r.sessions[id], gatewayID)
	order.CustomerName = customer.Name
	order.CustomerEmail = customer.Email
	order.CustomerPhone = customer.Phone
	return nil
}

func (r *fakeOrderRepo) CompareAndUpdate(_ context.Context, id uuid.UUID, expected, next db.OrderState, transactionID string) error {
	if hook := r.takeHook(); hook != nil {
		hook(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	order, ok := r.orders[id]
	if !ok || order.State() != expected {
		return fmt.Errorf("%w: expected %s", db.ErrStaleOrderState, expected)
	}
	order.Status = next.Status
	order.PaymentStatus = next.PaymentStatus
	if transactionID != "" {
		order.TransactionID = transactionID
	}
	r.updates++
	return nil
}

func (r *fakeOrderRepo) takeHook() func(*fakeOrderRepo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hook := r.beforeUpdate
	r.beforeUpdate = nil
	return hook
}

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	statusCalls int
	lastRequest gateway.SessionRequest

	session     gateway.Session
	observation gateway.Observation

	// sessions are handed out in order before falling back to session.
	sessions []gateway.Session
	// observations override observation per gateway id.
	observations map[string]gateway.Observation
	createErr   error
	statusErr   error
}

func (g *fakeGateway) Provider() string {
	return gateway.ProviderFedaPay
}

func (g *fakeGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastRequest = req
	if g.createErr != nil {
		return gateway.Session{}, g.createErr
	}
	if len(g.sessions) > 0 {
		next := g.sessions[0]
		g.sessions = g.sessions[1:]
		return next, nil
	}
	return g.session, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, gatewayID string) (gateway.Observation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return gateway.Observation{}, g.statusErr
	}
	obs, ok := g.observations[gatewayID]
	if !ok {
		obs = g.observation
	}
	obs.GatewayID = gatewayID
	return obs, nil
}

func (g *fakeGateway) setObservation(gatewayID string, obs gateway.Observation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.observations == nil {
		g.observations = make(map[string]gateway.Observation)
	}
	g.observations[gatewayID] = obs
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeEmailSender) SendPaymentConfirmation(_ context.Context, order *db.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, order.OrderNumber)
	return s.err
}

func (s *fakeEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
