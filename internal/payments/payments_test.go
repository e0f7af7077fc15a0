package payments

import (
	"math/big"
	"testing"

	"NanoTokenGate/internal/chain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(nano int64) string {
	v := new(big.Int).Mul(big.NewInt(nano), rawPerNano)
	return v.String()
}

func TestFilterUnseenDedupByID(t *testing.T) {
	batch := []chain.Receivable{
		{Hash: "AAA", AmountRaw: raw(2)},
		{Hash: "BBB", AmountRaw: raw(3)},
		{Hash: "CCC", AmountRaw: raw(1)},
	}

	unseen, sum := FilterUnseen(batch, []string{"BBB"})
	require.Len(t, unseen, 2)
	assert.Equal(t, "AAA", unseen[0].Hash)
	assert.Equal(t, "CCC", unseen[1].Hash)
	assert.Equal(t, raw(3), sum.String())
}

func TestFilterUnseenAmountNeverInfluencesMembership(t *testing.T) {
	// same id, different amount: still seen
	batch := []chain.Receivable{{Hash: "AAA", AmountRaw: raw(9)}}
	unseen, sum := FilterUnseen(batch, []string{"AAA"})
	assert.Empty(t, unseen)
	assert.Zero(t, sum.Sign())
}

func TestFilterUnseenOverlappingBatches(t *testing.T) {
	first := []chain.Receivable{
		{Hash: "AAA", AmountRaw: raw(1)},
		{Hash: "BBB", AmountRaw: raw(2)},
	}
	unseen, sum := FilterUnseen(first, nil)
	require.Len(t, unseen, 2)
	assert.Equal(t, raw(3), sum.String())

	seen := []string{"AAA", "BBB"}
	second := []chain.Receivable{
		{Hash: "BBB", AmountRaw: raw(2)},
		{Hash: "DDD", AmountRaw: raw(5)},
	}
	unseen, sum = FilterUnseen(second, seen)
	require.Len(t, unseen, 1)
	assert.Equal(t, "DDD", unseen[0].Hash)
	assert.Equal(t, raw(5), sum.String())
}

func TestFilterUnseenSkipsBadAmounts(t *testing.T) {
	batch := []chain.Receivable{
		{Hash: "AAA", AmountRaw: "not-a-number"},
		{Hash: "BBB", AmountRaw: "0"},
		{Hash: "CCC", AmountRaw: raw(1)},
	}
	unseen, sum := FilterUnseen(batch, nil)
	require.Len(t, unseen, 1)
	assert.Equal(t, "CCC", unseen[0].Hash)
	assert.Equal(t, raw(1), sum.String())
}

func TestParseRaw(t *testing.T) {
	v, ok := ParseRaw("")
	require.True(t, ok)
	assert.Zero(t, v.Sign())

	v, ok = ParseRaw(raw(7))
	require.True(t, ok)
	assert.Equal(t, raw(7), v.String())

	_, ok = ParseRaw("bogus")
	assert.False(t, ok)
}

func TestRawToNano(t *testing.T) {
	v, _ := new(big.Int).SetString(raw(5), 10)
	assert.InDelta(t, 5.0, RawToNano(v), 1e-12)

	half := new(big.Int).Div(rawPerNano, big.NewInt(2))
	assert.InDelta(t, 0.5, RawToNano(half), 1e-12)
}

func TestSufficientWithinTolerance(t *testing.T) {
	exact, _ := new(big.Int).SetString(raw(5), 10)
	assert.True(t, Sufficient(exact, 5))

	// short by half the tolerance: still sufficient
	shortfall := new(big.Int).Div(rawPerNano, big.NewInt(2_000_000))
	almost := new(big.Int).Sub(exact, shortfall)
	assert.True(t, Sufficient(almost, 5))

	// short by well over the tolerance: not sufficient
	tooShort := new(big.Int).Sub(exact, new(big.Int).Div(rawPerNano, big.NewInt(1000)))
	assert.False(t, Sufficient(tooShort, 5))

	// overpayment is always sufficient
	over := new(big.Int).Add(exact, rawPerNano)
	assert.True(t, Sufficient(over, 5))
}

func TestTokensPurchased(t *testing.T) {
	paid, _ := new(big.Int).SetString(raw(5), 10)
	assert.Equal(t, int64(50), TokensPurchased(paid, 0.1))

	// slight overpayment rounds to the nearest token
	over := new(big.Int).Add(paid, new(big.Int).Div(rawPerNano, big.NewInt(100)))
	assert.Equal(t, int64(50), TokensPurchased(over, 0.1))

	assert.Zero(t, TokensPurchased(paid, 0))
}
