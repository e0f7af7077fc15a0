package payments

import (
	"math"
	"math/big"

	"NanoTokenGate/internal/chain"
)

// ToleranceNano absorbs display-unit rounding drift when many payments are
// summed, so an order missing less than this is still considered paid.
const ToleranceNano = 0.000001

// rawPerNano is 10^30: raw units per display unit.
var rawPerNano = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

// FilterUnseen drops every payment whose id is already in seen and returns
// the remaining batch in its original order together with the raw-unit sum.
// Dedup is by id only; amounts never influence membership.
func FilterUnseen(batch []chain.Receivable, seen []string) ([]chain.Receivable, *big.Int) {
	seenSet := make(map[string]struct{}, len(seen))
	for _, h := range seen {
		seenSet[h] = struct{}{}
	}
	sum := new(big.Int)
	out := make([]chain.Receivable, 0, len(batch))
	for _, p := range batch {
		if _, ok := seenSet[p.Hash]; ok {
			continue
		}
		amount, ok := new(big.Int).SetString(p.AmountRaw, 10)
		if !ok || amount.Sign() <= 0 {
			continue
		}
		sum.Add(sum, amount)
		out = append(out, p)
	}
	return out, sum
}

// ParseRaw parses a raw-unit decimal string, treating empty as zero.
func ParseRaw(raw string) (*big.Int, bool) {
	if raw == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(raw, 10)
}

// RawToNano converts a raw amount to the display unit. The conversion is
// lossy and only ever used at the comparison/rounding boundary.
func RawToNano(raw *big.Int) float64 {
	f := new(big.Float).SetInt(raw)
	f.Quo(f, new(big.Float).SetInt(rawPerNano))
	out, _ := f.Float64()
	return out
}

// Sufficient reports whether the accumulated raw value covers the required
// display-unit amount within tolerance.
func Sufficient(receivedRaw *big.Int, requiredNano float64) bool {
	return RawToNano(receivedRaw) >= requiredNano-ToleranceNano
}

// TokensPurchased converts an accumulated raw value to whole tokens at the
// given display-unit price.
func TokensPurchased(receivedRaw *big.Int, price float64) int64 {
	if price <= 0 {
		return 0
	}
	return int64(math.Round(RawToNano(receivedRaw) / price))
}
