package store

import (
	"context"
	"sync"
	"time"

	"NanoTokenGate/internal/models"
)

// Memory is an in-memory OrderStore with the same CAS semantics as the
// Postgres implementation. It backs tests and local development without a
// database.
type Memory struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]*models.Order)}
}

func (m *Memory) Insert(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneOrder(order)
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.orders[cp.TokenKey] = cp
	return nil
}

func (m *Memory) ByTokenKey(ctx context.Context, tokenKey string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (m *Memory) ByAddress(ctx context.Context, address string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.Address == address {
			return cloneOrder(order), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) WaitingOrders(ctx context.Context) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if order.OrderWaiting && order.OrderTimeLeft > 0 {
			out = append(out, cloneOrder(order))
		}
	}
	return out, nil
}

func (m *Memory) Refill(ctx context.Context, tokenKey string, nanoAmount float64, timeLeft int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return ErrNotFound
	}
	order.OrderWaiting = true
	order.NanoAmount = nanoAmount
	order.TokenAmount = 0
	order.ReceivedRaw = "0"
	order.OrderTimeLeft = timeLeft
	order.Processing = false
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) BeginProcessing(ctx context.Context, tokenKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok || order.Processing {
		return false, nil
	}
	order.Processing = true
	return true, nil
}

func (m *Memory) EndProcessing(ctx context.Context, tokenKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[tokenKey]; ok {
		order.Processing = false
	}
	return nil
}

func (m *Memory) Cancel(ctx context.Context, tokenKey, newAddress, newSigningKey string, timeLeft int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok || order.Processing {
		return false, nil
	}
	order.Address = newAddress
	order.SigningKey = newSigningKey
	order.OrderWaiting = false
	order.NanoAmount = 0
	order.ReceivedRaw = "0"
	order.OrderTimeLeft = timeLeft
	order.Processing = false
	order.Previous = nil
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) SetPrevious(ctx context.Context, address, previous string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.Address == address {
			p := previous
			order.Previous = &p
			order.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) RecordPartial(ctx context.Context, tokenKey, receivedRaw string, newHashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return ErrNotFound
	}
	order.ReceivedRaw = receivedRaw
	order.Hashes = append(order.Hashes, newHashes...)
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Complete(ctx context.Context, tokenKey string, tokensPurchased int64, receivedRaw string, newHashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return ErrNotFound
	}
	order.Tokens += tokensPurchased
	order.TokenAmount += tokensPurchased
	order.OrderWaiting = false
	order.ReceivedRaw = receivedRaw
	order.Hashes = append(order.Hashes, newHashes...)
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DecrementTimeLeft(ctx context.Context, tokenKey string, seconds int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return 0, ErrNotFound
	}
	order.OrderTimeLeft -= seconds
	if order.OrderTimeLeft < 0 {
		order.OrderTimeLeft = 0
	}
	order.UpdatedAt = time.Now().UTC()
	return order.OrderTimeLeft, nil
}

func (m *Memory) SetWaiting(ctx context.Context, tokenKey string, waiting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[tokenKey]
	if !ok {
		return ErrNotFound
	}
	order.OrderWaiting = waiting
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneOrder(order *models.Order) *models.Order {
	cp := *order
	if order.Previous != nil {
		p := *order.Previous
		cp.Previous = &p
	}
	cp.Hashes = append([]string(nil), order.Hashes...)
	return &cp
}
