package worker

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"NanoTokenGate/internal/models"
	"NanoTokenGate/internal/payments"
	"NanoTokenGate/internal/store"
	"NanoTokenGate/internal/sweep"

	"github.com/rs/zerolog/log"
)

// Reconciler is the chain-builder surface the polling loop drives.
type Reconciler interface {
	Reconcile(ctx context.Context, order *models.Order) (sweep.Result, error)
}

// Poller runs one explicit polling task per waiting order. Loop state (the
// accumulated total, the countdown) lives in the persisted order record, so a
// restarted process resumes loops with Resume instead of losing them.
type Poller struct {
	Store    store.OrderStore
	Sweeper  Reconciler
	Price    float64
	Interval time.Duration

	// loops run on the process-lifetime context, not the context of the
	// request that started them
	ctx    context.Context
	mu     sync.Mutex
	active map[string]*loop
}

type loop struct {
	tokenKey string
	address  string
	nudge    chan struct{}
}

func New(ctx context.Context, st store.OrderStore, sw Reconciler, price float64, interval time.Duration) *Poller {
	return &Poller{
		Store:    st,
		Sweeper:  sw,
		Price:    price,
		Interval: interval,
		ctx:      ctx,
		active:   make(map[string]*loop),
	}
}

// Start launches the polling loop for an order unless one is already running.
func (p *Poller) Start(tokenKey, address string) {
	p.mu.Lock()
	if _, ok := p.active[tokenKey]; ok {
		p.mu.Unlock()
		return
	}
	l := &loop{tokenKey: tokenKey, address: address, nudge: make(chan struct{}, 1)}
	p.active[tokenKey] = l
	p.mu.Unlock()

	go p.run(p.ctx, l)
}

// Resume restarts loops for every waiting order, reconstructing their state
// from the store. Called once at process startup.
func (p *Poller) Resume(ctx context.Context) error {
	orders, err := p.Store.WaitingOrders(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		log.Info().Str("component", "poller").Str("address", order.Address).Msg("resuming polling loop")
		p.Start(order.TokenKey, order.Address)
	}
	return nil
}

// RunOnce performs a single reconciliation pass for an address without
// entering the recurring loop. Used by the repair operation and the sweeper
// daemon. Unlike the recurring loop it reconciles even when the order is no
// longer waiting, so stray funds sent to a completed, timed-out or cancelled
// order's address still get claimed and swept.
func (p *Poller) RunOnce(ctx context.Context, address string) error {
	order, err := p.Store.ByAddress(ctx, address)
	if err != nil {
		return err
	}
	_, err = p.cycle(ctx, order.TokenKey, true)
	return err
}

// Nudge wakes the loop watching address ahead of its next scheduled poll.
func (p *Poller) Nudge(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.active {
		if l.address == address {
			select {
			case l.nudge <- struct{}{}:
			default:
			}
			return
		}
	}
}

func (p *Poller) run(ctx context.Context, l *loop) {
	defer p.remove(l.tokenKey)
	logger := log.With().Str("component", "poller").Str("address", l.address).Logger()

	for {
		done, err := p.cycle(ctx, l.tokenKey, false)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn().Msg("order disappeared, stopping loop")
				return
			}
			logger.Warn().Err(err).Msg("poll cycle failed, retrying on next interval")
		}
		if done {
			return
		}

		// A websocket nudge shortcuts the sleep without burning countdown
		// time; only a full interval decrements the clock.
		intervalElapsed := false
		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			intervalElapsed = true
		case <-l.nudge:
			timer.Stop()
		}

		if intervalElapsed {
			left, err := p.Store.DecrementTimeLeft(ctx, l.tokenKey, int64(p.Interval/time.Second))
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return
				}
				logger.Warn().Err(err).Msg("countdown update failed")
				continue
			}
			if left <= 0 {
				if err := p.Store.SetWaiting(ctx, l.tokenKey, false); err != nil {
					logger.Warn().Err(err).Msg("expiring order failed")
				}
				logger.Info().Msg("payment timed out")
				return
			}
		}
	}
}

// cycle runs one reconciliation pass: acquire the processing lock, let the
// chain builder claim and sweep new payments, then fold the chained value
// into the order. done=true terminates the loop. force reconciles an order
// that is no longer waiting (the repair path); only a waiting order can be
// credited.
func (p *Poller) cycle(ctx context.Context, tokenKey string, force bool) (bool, error) {
	order, err := p.Store.ByTokenKey(ctx, tokenKey)
	if err != nil {
		return errors.Is(err, store.ErrNotFound), err
	}
	if !order.OrderWaiting && !force {
		return true, nil
	}

	locked, err := p.Store.BeginProcessing(ctx, tokenKey)
	if err != nil {
		return false, err
	}
	if !locked {
		// another pass or a repair holds the lock; try again next interval
		return false, nil
	}

	result, sweepErr := p.Sweeper.Reconcile(ctx, order)
	endErr := p.Store.EndProcessing(ctx, tokenKey)

	// Payments in the result are settled on-ledger and will never be listed
	// as receivable again, so they are persisted even when the cycle errored
	// part way through.
	done := !order.OrderWaiting
	if len(result.Hashes) > 0 {
		total, ok := payments.ParseRaw(order.ReceivedRaw)
		if !ok {
			total = new(big.Int)
		}
		total.Add(total, result.AmountRaw)

		logger := log.With().Str("component", "poller").Str("address", order.Address).Logger()
		switch {
		case order.OrderWaiting && payments.Sufficient(total, order.NanoAmount):
			tokens := payments.TokensPurchased(total, p.Price)
			if err := p.Store.Complete(ctx, tokenKey, tokens, total.String(), result.Hashes); err != nil {
				return false, err
			}
			logger.Info().Int64("tokens", tokens).Msg("order fully paid, tokens credited")
			done = true
		case order.OrderWaiting:
			if err := p.Store.RecordPartial(ctx, tokenKey, total.String(), result.Hashes); err != nil {
				return false, err
			}
			logger.Info().
				Float64("still_needed", order.NanoAmount-payments.RawToNano(total)).
				Msg("partial payment recorded")
		default:
			if err := p.Store.RecordPartial(ctx, tokenKey, total.String(), result.Hashes); err != nil {
				return false, err
			}
			logger.Info().Msg("stray payments claimed for inactive order")
		}
	}

	if sweepErr != nil {
		return done, sweepErr
	}
	return done, endErr
}

func (p *Poller) remove(tokenKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, tokenKey)
}
