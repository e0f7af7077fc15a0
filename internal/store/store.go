package store

import (
	"context"
	"errors"

	"NanoTokenGate/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

// OrderStore is the persistence contract consumed by the lifecycle manager,
// the polling loop and the chain builder. Updates touching the processing
// flag or the signing key use compare-and-set semantics so a cancellation can
// never race a live sweep.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	ByTokenKey(ctx context.Context, tokenKey string) (*models.Order, error)
	ByAddress(ctx context.Context, address string) (*models.Order, error)
	WaitingOrders(ctx context.Context) ([]*models.Order, error)
	Refill(ctx context.Context, tokenKey string, nanoAmount float64, timeLeft int64) error
	BeginProcessing(ctx context.Context, tokenKey string) (bool, error)
	EndProcessing(ctx context.Context, tokenKey string) error
	Cancel(ctx context.Context, tokenKey, newAddress, newSigningKey string, timeLeft int64) (bool, error)
	SetPrevious(ctx context.Context, address, previous string) error
	RecordPartial(ctx context.Context, tokenKey, receivedRaw string, newHashes []string) error
	Complete(ctx context.Context, tokenKey string, tokensPurchased int64, receivedRaw string, newHashes []string) error
	DecrementTimeLeft(ctx context.Context, tokenKey string, seconds int64) (int64, error)
	SetWaiting(ctx context.Context, tokenKey string, waiting bool) error
}

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const orderColumns = `order_id, token_key, address, signing_key, tokens,
	token_amount, nano_amount, received_raw, order_waiting, order_time_left,
	processing, previous, hashes, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, token_key, address, signing_key, tokens,
			token_amount, nano_amount, received_raw, order_waiting,
			order_time_left, processing, previous, hashes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		order.OrderID,
		order.TokenKey,
		order.Address,
		order.SigningKey,
		order.Tokens,
		order.TokenAmount,
		order.NanoAmount,
		order.ReceivedRaw,
		order.OrderWaiting,
		order.OrderTimeLeft,
		order.Processing,
		order.Previous,
		order.Hashes,
	)
	return err
}

func (s *Store) ByTokenKey(ctx context.Context, tokenKey string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE token_key=$1`, tokenKey)
	return scanOrder(row)
}

func (s *Store) ByAddress(ctx context.Context, address string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE address=$1`, address)
	return scanOrder(row)
}

func (s *Store) WaitingOrders(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_waiting AND order_time_left > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Store) Refill(ctx context.Context, tokenKey string, nanoAmount float64, timeLeft int64) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET order_waiting=true, nano_amount=$2, token_amount=0, received_raw='0',
			order_time_left=$3, processing=false, updated_at=now()
		WHERE token_key=$1
	`, tokenKey, nanoAmount, timeLeft)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BeginProcessing acquires the per-order processing lock. Returns false when
// the lock is already held.
func (s *Store) BeginProcessing(ctx context.Context, tokenKey string) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET processing=true, updated_at=now()
		WHERE token_key=$1 AND processing=false
	`, tokenKey)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Store) EndProcessing(ctx context.Context, tokenKey string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders SET processing=false, updated_at=now() WHERE token_key=$1
	`, tokenKey)
	return err
}

// Cancel rotates the deposit address and signing key unless a sweep holds the
// processing lock. Returns false without mutating anything when locked. The
// chain pointer is cleared along with the address: it belongs to the old
// account's chain and the fresh address starts with an open block.
func (s *Store) Cancel(ctx context.Context, tokenKey, newAddress, newSigningKey string, timeLeft int64) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET address=$2, signing_key=$3, order_waiting=false, nano_amount=0,
			received_raw='0', order_time_left=$4, processing=false, previous=NULL,
			updated_at=now()
		WHERE token_key=$1 AND processing=false
	`, tokenKey, newAddress, newSigningKey, timeLeft)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Store) SetPrevious(ctx context.Context, address, previous string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders SET previous=$2, updated_at=now() WHERE address=$1
	`, address, previous)
	return err
}

func (s *Store) RecordPartial(ctx context.Context, tokenKey, receivedRaw string, newHashes []string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET received_raw=$2, hashes = hashes || $3::text[], updated_at=now()
		WHERE token_key=$1
	`, tokenKey, receivedRaw, newHashes)
	return err
}

func (s *Store) Complete(ctx context.Context, tokenKey string, tokensPurchased int64, receivedRaw string, newHashes []string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET tokens = tokens + $2, token_amount = token_amount + $2,
			order_waiting=false, received_raw=$3, hashes = hashes || $4::text[],
			updated_at=now()
		WHERE token_key=$1
	`, tokenKey, tokensPurchased, receivedRaw, newHashes)
	return err
}

func (s *Store) DecrementTimeLeft(ctx context.Context, tokenKey string, seconds int64) (int64, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE orders
		SET order_time_left = GREATEST(order_time_left - $2, 0), updated_at=now()
		WHERE token_key=$1
		RETURNING order_time_left
	`, tokenKey, seconds)
	var left int64
	if err := row.Scan(&left); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return left, nil
}

func (s *Store) SetWaiting(ctx context.Context, tokenKey string, waiting bool) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders SET order_waiting=$2, updated_at=now() WHERE token_key=$1
	`, tokenKey, waiting)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.OrderID,
		&order.TokenKey,
		&order.Address,
		&order.SigningKey,
		&order.Tokens,
		&order.TokenAmount,
		&order.NanoAmount,
		&order.ReceivedRaw,
		&order.OrderWaiting,
		&order.OrderTimeLeft,
		&order.Processing,
		&order.Previous,
		&order.Hashes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}
