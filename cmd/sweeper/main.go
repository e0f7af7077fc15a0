package main

import (
	"context"
	"time"

	"NanoTokenGate/internal/chain"
	"NanoTokenGate/internal/config"
	"NanoTokenGate/internal/db"
	"NanoTokenGate/internal/store"
	"NanoTokenGate/internal/sweep"
	"NanoTokenGate/internal/worker"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// The sweeper daemon periodically runs a single-shot reconcile over every
// waiting order. It is an out-of-process safety net: if the api process was
// down while payments arrived, this claims and sweeps them.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("config load failed")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	st := store.New(pool)
	node, err := chain.NewMultiNodeClient(cfg.Node.RPCEndpoints, cfg.Node.RPCFailoverThreshold)
	if err != nil {
		zlog.Fatal().Err(err).Msg("node client setup failed")
	}
	sweeper := &sweep.Sweeper{
		Node:                 node,
		Work:                 chain.NewWorkClient(cfg.Node.WorkServer),
		Store:                st,
		Representative:       cfg.Node.Representative,
		PayoutAccount:        cfg.Tokens.PayoutAccount,
		DifficultyMultiplier: cfg.Node.DifficultyMultiplier,
		ReceivableThreshold:  cfg.Node.ReceivableThreshold,
		ReceivableCount:      cfg.Node.ReceivableCount,
	}
	poller := worker.New(ctx, st, sweeper, cfg.Tokens.Price,
		time.Duration(cfg.Tokens.PollIntervalSeconds)*time.Second)

	interval := time.Duration(cfg.Tokens.SweeperIntervalSeconds) * time.Second
	zlog.Info().Str("node", node.BaseURL()).Dur("interval", interval).Msg("sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := sweepOnce(ctx, st, poller); err != nil {
			zlog.Warn().Err(err).Msg("sweep pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, st *store.Store, poller *worker.Poller) error {
	orders, err := st.WaitingOrders(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := poller.RunOnce(ctx, order.Address); err != nil {
			zlog.Warn().Err(err).Str("address", order.Address).Msg("reconcile failed")
		}
	}
	if len(orders) > 0 {
		zlog.Info().Int("orders", len(orders)).Msg("sweep pass done")
	}
	return nil
}
