package services

import (
	"context"
	"errors"
	"fmt"

	"NanoTokenGate/internal/models"
	"NanoTokenGate/internal/nano"
	"NanoTokenGate/internal/pricing"
	"NanoTokenGate/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAmount   = errors.New("token amount out of bounds")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderInProgress = errors.New("order is already processing or was interrupted")
	ErrOrderTimedOut   = errors.New("order timed out")
)

// PollStarter is the polling surface the lifecycle manager drives: recurring
// loops for fresh/refilled orders, single-shot passes for repairs.
type PollStarter interface {
	Start(tokenKey, address string)
	RunOnce(ctx context.Context, address string) error
}

// OrderService owns the order state machine: creation and refill, status and
// balance queries, cancellation with key rotation, and repair.
type OrderService struct {
	Store          store.OrderStore
	Poller         PollStarter
	Pricing        pricing.Service
	MinAmount      int64
	MaxAmount      int64
	PaymentTimeout int64 // seconds
}

// PaymentRequest is the payload returned to a caller asking to buy tokens.
type PaymentRequest struct {
	Address       string
	TokenKey      string
	PaymentAmount float64
}

// RequestPayment issues (or refills) an order for tokenAmount tokens and
// starts its polling loop. A known tokenKey whose order is not waiting is
// refilled in place, keeping its address, lifetime tokens and hash ledger. A
// known tokenKey still waiting for payment is refused so the same address is
// never polled twice.
func (s *OrderService) RequestPayment(ctx context.Context, tokenAmount int64, tokenKey string) (*PaymentRequest, error) {
	if tokenAmount < s.MinAmount {
		return nil, fmt.Errorf("%w: must be at least %d", ErrInvalidAmount, s.MinAmount)
	}
	if tokenAmount > s.MaxAmount {
		return nil, fmt.Errorf("%w: must be at most %d", ErrInvalidAmount, s.MaxAmount)
	}
	snap, err := s.Pricing.CurrentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	nanoAmount := float64(tokenAmount) * snap.TokenPrice

	if tokenKey != "" {
		order, err := s.Store.ByTokenKey(ctx, tokenKey)
		switch {
		case err == nil:
			if order.OrderWaiting {
				return nil, ErrOrderInProgress
			}
			if err := s.Store.Refill(ctx, tokenKey, nanoAmount, s.PaymentTimeout); err != nil {
				return nil, err
			}
			log.Info().Str("component", "orders").Str("address", order.Address).
				Float64("nano_amount", nanoAmount).Msg("order refilled")
			s.Poller.Start(tokenKey, order.Address)
			return &PaymentRequest{Address: order.Address, TokenKey: tokenKey, PaymentAmount: nanoAmount}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		// unknown key: fall through and issue a fresh order
	}

	signingKey, address, err := nano.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	newKey, err := nano.RandomHex()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:       uuid.NewString(),
		TokenKey:      newKey,
		Address:       address,
		SigningKey:    signingKey,
		NanoAmount:    nanoAmount,
		ReceivedRaw:   "0",
		OrderWaiting:  true,
		OrderTimeLeft: s.PaymentTimeout,
		Hashes:        []string{},
	}
	if err := s.Store.Insert(ctx, order); err != nil {
		return nil, err
	}
	log.Info().Str("component", "orders").Str("address", address).
		Float64("nano_amount", nanoAmount).Msg("order created")
	s.Poller.Start(newKey, address)
	return &PaymentRequest{Address: address, TokenKey: newKey, PaymentAmount: nanoAmount}, nil
}

// Status is the three-way order state derived from order_waiting and
// order_time_left.
type Status struct {
	Completed     bool
	TokensOrdered int64
	TokensTotal   int64
	TimeLeft      int64
}

// CheckOrderStatus reports whether an order completed, is still waiting, or
// timed out.
func (s *OrderService) CheckOrderStatus(ctx context.Context, tokenKey string) (*Status, error) {
	order, err := s.Store.ByTokenKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	switch {
	case !order.OrderWaiting && order.OrderTimeLeft > 0:
		return &Status{Completed: true, TokensOrdered: order.TokenAmount, TokensTotal: order.Tokens}, nil
	case order.OrderTimeLeft > 0:
		return &Status{TimeLeft: order.OrderTimeLeft}, nil
	default:
		return nil, ErrOrderTimedOut
	}
}

// Balance always carries the lifetime token total; StatusText tells the
// caller what to do when the last order is ambiguous or timed out.
type Balance struct {
	TokensTotal int64
	StatusText  string
}

func (s *OrderService) CheckTokenBalance(ctx context.Context, tokenKey string) (*Balance, error) {
	order, err := s.Store.ByTokenKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	switch {
	case !order.OrderWaiting && order.OrderTimeLeft > 0:
		return &Balance{TokensTotal: order.Tokens, StatusText: "OK"}, nil
	case order.OrderTimeLeft > 0:
		return &Balance{
			TokensTotal: order.Tokens,
			StatusText:  "Something went wrong with the last order. You can retry the request with the same key to pick up the receivable, or cancel the order and claim the private key.",
		}, nil
	default:
		return &Balance{
			TokensTotal: order.Tokens,
			StatusText:  "The last order timed out. If you sent funds you can retry the request with the same key to pick up the receivable, or cancel the order and claim the private key.",
		}, nil
	}
}

// CancelResult returns the rotated-out signing key so stray funds on the old
// address stay recoverable by the caller.
type CancelResult struct {
	PrivKey    string
	StatusText string
}

// CancelOrder rotates the deposit address and signing key and hands the old
// key back. Refused with an empty key while a sweep holds the processing
// lock; the compare-and-set in the store makes the refusal race-free.
func (s *OrderService) CancelOrder(ctx context.Context, tokenKey string) (*CancelResult, error) {
	order, err := s.Store.ByTokenKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	newKey, newAddress, err := nano.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ok, err := s.Store.Cancel(ctx, tokenKey, newAddress, newKey, s.PaymentTimeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info().Str("component", "orders").Str("address", order.Address).Msg("cancel refused: order is processing")
		return &CancelResult{PrivKey: "", StatusText: "Order is currently processing, please try again later."}, nil
	}
	log.Info().Str("component", "orders").Str("old_address", order.Address).
		Str("new_address", newAddress).Msg("order cancelled, account replaced")
	return &CancelResult{
		PrivKey:    order.SigningKey,
		StatusText: "Order canceled and account replaced. You can use the private key to claim any leftover funds.",
	}, nil
}

// TokenPrice reports the current display-unit price per token.
func (s *OrderService) TokenPrice(ctx context.Context) (pricing.Snapshot, error) {
	return s.Pricing.CurrentSnapshot(ctx)
}

// Repair runs a single reconciliation pass for one address without entering
// the recurring poll loop.
func (s *OrderService) Repair(ctx context.Context, address string) error {
	err := s.Poller.RunOnce(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}
