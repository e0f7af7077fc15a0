package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NanoTokenGate/internal/chain"
	"NanoTokenGate/internal/config"
	"NanoTokenGate/internal/db"
	internalhttp "NanoTokenGate/internal/http"
	"NanoTokenGate/internal/pricing"
	"NanoTokenGate/internal/services"
	"NanoTokenGate/internal/store"
	"NanoTokenGate/internal/sweep"
	"NanoTokenGate/internal/worker"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	work := chain.NewWorkClient(cfg.Node.WorkServer)

	sweeper := &sweep.Sweeper{
		Node:                 node,
		Work:                 work,
		Store:                st,
		Representative:       cfg.Node.Representative,
		PayoutAccount:        cfg.Tokens.PayoutAccount,
		DifficultyMultiplier: cfg.Node.DifficultyMultiplier,
		ReceivableThreshold:  cfg.Node.ReceivableThreshold,
		ReceivableCount:      cfg.Node.ReceivableCount,
	}
	poller := worker.New(ctx, st, sweeper, cfg.Tokens.Price,
		time.Duration(cfg.Tokens.PollIntervalSeconds)*time.Second)

	if err := poller.Resume(ctx); err != nil {
		zlog.Warn().Err(err).Msg("resuming waiting orders failed")
	}
	go poller.RunWS(ctx, cfg.Node.WSEndpoint)

	orderSvc := &services.OrderService{
		Store:          st,
		Poller:         poller,
		Pricing:        pricing.Service{FixedTokenPrice: cfg.Tokens.Price},
		MinAmount:      cfg.Tokens.MinAmount,
		MaxAmount:      cfg.Tokens.MaxAmount,
		PaymentTimeout: cfg.Tokens.PaymentTimeoutSeconds,
	}

	h := internalhttp.NewHandler(orderSvc)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		zlog.Info().Str("addr", cfg.Server.Addr).Str("node", node.BaseURL()).Msg("api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}

func setupLogging(level string) {
	if os.Getenv("LOG_PRETTY") != "" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
