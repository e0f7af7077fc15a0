package store

import (
	"context"
	"testing"

	"NanoTokenGate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*Memory, *models.Order) {
	t.Helper()
	m := NewMemory()
	order := &models.Order{
		OrderID:       "11111111-1111-1111-1111-111111111111",
		TokenKey:      "key",
		Address:       "nano_1deposit",
		SigningKey:    "AA",
		NanoAmount:    5,
		ReceivedRaw:   "0",
		OrderWaiting:  true,
		OrderTimeLeft: 180,
		Hashes:        []string{},
	}
	require.NoError(t, m.Insert(context.Background(), order))
	return m, order
}

func TestBeginProcessingIsExclusive(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	locked, err := m.BeginProcessing(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.True(t, locked)

	again, err := m.BeginProcessing(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, m.EndProcessing(ctx, order.TokenKey))
	relocked, err := m.BeginProcessing(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.True(t, relocked)
}

func TestCancelRefusedWhileProcessing(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	locked, err := m.BeginProcessing(ctx, order.TokenKey)
	require.NoError(t, err)
	require.True(t, locked)

	ok, err := m.Cancel(ctx, order.TokenKey, "nano_1new", "BB", 180)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.EndProcessing(ctx, order.TokenKey))
	ok, err = m.Cancel(ctx, order.TokenKey, "nano_1new", "BB", 180)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := m.ByTokenKey(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "nano_1new", stored.Address)
	assert.Equal(t, "BB", stored.SigningKey)
	assert.False(t, stored.OrderWaiting)
}

func TestCancelClearsChainPointer(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	require.NoError(t, m.SetPrevious(ctx, order.Address, "ABCD"))

	ok, err := m.Cancel(ctx, order.TokenKey, "nano_1new", "BB", 180)
	require.NoError(t, err)
	require.True(t, ok)

	// the pointer belongs to the old account's chain; the fresh address must
	// start over with an open block
	stored, err := m.ByTokenKey(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.Nil(t, stored.Previous)
}

func TestDecrementTimeLeftFloorsAtZero(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	left, err := m.DecrementTimeLeft(ctx, order.TokenKey, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(80), left)

	left, err = m.DecrementTimeLeft(ctx, order.TokenKey, 500)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestCompleteAccumulatesLifetimeTokens(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	require.NoError(t, m.Complete(ctx, order.TokenKey, 50, "1", []string{"AAA"}))
	require.NoError(t, m.Refill(ctx, order.TokenKey, 5, 180))
	require.NoError(t, m.Complete(ctx, order.TokenKey, 30, "2", []string{"BBB"}))

	stored, err := m.ByTokenKey(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, int64(80), stored.Tokens)
	assert.Equal(t, int64(30), stored.TokenAmount)
	assert.Equal(t, []string{"AAA", "BBB"}, stored.Hashes)
}

func TestReadsReturnCopies(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	got, err := m.ByTokenKey(ctx, order.TokenKey)
	require.NoError(t, err)
	got.Hashes = append(got.Hashes, "MUTATED")
	got.OrderWaiting = false

	fresh, err := m.ByTokenKey(ctx, order.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, fresh.Hashes)
	assert.True(t, fresh.OrderWaiting)
}

func TestWaitingOrdersFiltersExpired(t *testing.T) {
	m, order := seed(t)
	ctx := context.Background()

	list, err := m.WaitingOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = m.DecrementTimeLeft(ctx, order.TokenKey, 999)
	require.NoError(t, err)
	list, err = m.WaitingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
