package pricing

import "context"

// Service quotes the token price. The price is fixed by configuration; the
// Snapshot shape leaves room for a market-driven source later.
type Service struct {
	FixedTokenPrice float64
}

type Snapshot struct {
	TokenPrice float64 `json:"token_price"`
	Source     string  `json:"source"`
}

func (s Service) CurrentSnapshot(ctx context.Context) (Snapshot, error) {
	return Snapshot{
		TokenPrice: s.FixedTokenPrice,
		Source:     "fixed",
	}, nil
}
