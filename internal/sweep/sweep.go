package sweep

import (
	"context"
	"math/big"
	"strings"

	"NanoTokenGate/internal/chain"
	"NanoTokenGate/internal/models"
	"NanoTokenGate/internal/nano"
	"NanoTokenGate/internal/payments"
	"NanoTokenGate/internal/store"

	"github.com/rs/zerolog/log"
)

// NodeAPI is the slice of the ledger-node RPC surface the chain builder uses.
type NodeAPI interface {
	AccountInfo(ctx context.Context, account string) (*chain.AccountInfo, error)
	Receivable(ctx context.Context, account string, count int, thresholdRaw string) ([]chain.Receivable, error)
	Process(ctx context.Context, subtype string, block *nano.Block) (string, error)
}

// WorkAPI provides proof-of-work for a block input hash.
type WorkAPI interface {
	Generate(ctx context.Context, hash string, multiplier float64) (string, error)
}

// Sweeper reconciles one deposit account against the ledger: it claims every
// new receivable payment with a receive block (or an open block for a fresh
// account) and then sweeps the whole balance to the payout account with a
// send block. Each accepted block advances the persisted chain pointer, so a
// crash mid-batch resumes from the stored pointer on the next cycle.
type Sweeper struct {
	Node                 NodeAPI
	Work                 WorkAPI
	Store                store.OrderStore
	Representative       string
	PayoutAccount        string
	DifficultyMultiplier float64
	ReceivableThreshold  string
	ReceivableCount      int
}

// Result reports the payments actually chained during a cycle. Payments left
// behind by a work or submission failure are not included and stay out of the
// order's hash ledger, so the next cycle retries them.
type Result struct {
	Hashes    []string
	AmountRaw *big.Int
}

func (s *Sweeper) Reconcile(ctx context.Context, order *models.Order) (Result, error) {
	logger := log.With().Str("component", "sweeper").Str("address", order.Address).Logger()
	result := Result{AmountRaw: new(big.Int)}

	info, err := s.Node.AccountInfo(ctx, order.Address)
	if err != nil {
		return result, err
	}

	balance := new(big.Int)
	previous := ""
	subtype := "open"
	representative := s.Representative
	if info.Found {
		if b, ok := new(big.Int).SetString(info.Balance, 10); ok {
			balance = b
		}
		previous = strings.ToUpper(info.Frontier)
		subtype = "receive"
		if info.Representative != "" {
			representative = info.Representative
		}
	}
	// The stored pointer is persisted after every accepted block and can be
	// ahead of the node's frontier; it wins.
	if order.Previous != nil && *order.Previous != "" {
		previous = strings.ToUpper(*order.Previous)
		subtype = "receive"
	}

	receivables, err := s.Node.Receivable(ctx, order.Address, s.receivableCount(), s.ReceivableThreshold)
	if err != nil {
		return result, err
	}

	unseen, unseenRaw := payments.FilterUnseen(receivables, order.Hashes)
	if len(unseen) == 0 {
		// Leftover balance with nothing receivable means an earlier send
		// failed; rebuild it.
		if len(receivables) == 0 && balance.Sign() > 0 && previous != "" {
			if err := s.sendAll(ctx, order, previous, representative); err != nil {
				logger.Warn().Err(err).Msg("sweeping leftover balance failed")
			}
		}
		return result, nil
	}
	logger.Info().
		Int("count", len(unseen)).
		Str("total_raw", unseenRaw.String()).
		Msg("new receivable payments found")

	pubHex, err := nano.AddressToLink(order.Address)
	if err != nil {
		return result, err
	}

	for _, p := range unseen {
		amount, ok := new(big.Int).SetString(p.AmountRaw, 10)
		if !ok {
			logger.Warn().Str("payment", p.Hash).Msg("unparseable raw amount, skipping")
			continue
		}

		// Open blocks take the account public key as work input, every later
		// block takes the previous hash.
		workInput := previous
		if subtype == "open" {
			workInput = pubHex
		}
		work, err := s.Work.Generate(ctx, workInput, s.DifficultyMultiplier)
		if err != nil {
			logger.Warn().Err(err).Str("payment", p.Hash).Msg("work generation failed, abandoning batch")
			break
		}

		newBalance := new(big.Int).Add(balance, amount)
		block, _, err := nano.NewStateBlock(order.SigningKey, previous, representative, newBalance.String(), p.Hash, work)
		if err != nil {
			logger.Warn().Err(err).Str("payment", p.Hash).Msg("block construction failed, abandoning batch")
			break
		}
		hash, err := s.Node.Process(ctx, subtype, block)
		if err != nil {
			logger.Warn().Err(err).Str("payment", p.Hash).Msg("block submission failed, abandoning batch")
			break
		}

		previous = hash
		balance = newBalance
		subtype = "receive"

		// The payment is settled on-ledger the moment the node accepts the
		// block, so it joins the result before any persistence can fail.
		result.Hashes = append(result.Hashes, p.Hash)
		result.AmountRaw.Add(result.AmountRaw, amount)

		if err := s.Store.SetPrevious(ctx, order.Address, previous); err != nil {
			return result, err
		}
		logger.Info().Str("block", hash).Str("payment", p.Hash).Msg("receivable claimed")
	}

	if balance.Sign() > 0 && previous != "" {
		if err := s.sendAll(ctx, order, previous, representative); err != nil {
			logger.Warn().Err(err).Msg("final send failed, will retry next cycle")
		}
	}
	return result, nil
}

// sendAll moves the account's entire balance to the payout account.
func (s *Sweeper) sendAll(ctx context.Context, order *models.Order, previous, representative string) error {
	work, err := s.Work.Generate(ctx, previous, s.DifficultyMultiplier)
	if err != nil {
		return err
	}
	link, err := nano.AddressToLink(s.PayoutAccount)
	if err != nil {
		return err
	}
	block, _, err := nano.NewStateBlock(order.SigningKey, previous, representative, "0", link, work)
	if err != nil {
		return err
	}
	hash, err := s.Node.Process(ctx, "send", block)
	if err != nil {
		return err
	}
	if err := s.Store.SetPrevious(ctx, order.Address, hash); err != nil {
		return err
	}
	log.Info().
		Str("component", "sweeper").
		Str("address", order.Address).
		Str("block", hash).
		Str("payout", s.PayoutAccount).
		Msg("balance swept to payout account")
	return nil
}

func (s *Sweeper) receivableCount() int {
	if s.ReceivableCount <= 0 {
		return 10
	}
	return s.ReceivableCount
}
