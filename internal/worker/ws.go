package worker

import (
	"context"
	"time"

	"NanoTokenGate/internal/chain"

	"github.com/rs/zerolog/log"
)

// RunWS listens for block confirmations on the node websocket and nudges the
// loop watching the destination account, so payments are picked up ahead of
// the next scheduled poll. The polling loop stays the source of truth; this
// only shortens the wait.
func (p *Poller) RunWS(ctx context.Context, endpoint string) {
	logger := log.With().Str("component", "poller_ws").Logger()
	if endpoint == "" {
		logger.Info().Msg("ws disabled: node ws_endpoint is empty")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client := chain.NewWSClient(endpoint)
		if err := client.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("ws connect failed")
			time.Sleep(3 * time.Second)
			continue
		}
		logger.Info().Str("endpoint", endpoint).Msg("ws connected")

		// Confirmations are filtered in-process against active loops, so the
		// subscription does not need per-account updates.
		if err := client.Subscribe(ctx, nil); err != nil {
			logger.Warn().Err(err).Msg("ws subscribe failed")
			client.Close()
			time.Sleep(3 * time.Second)
			continue
		}

		for {
			msg, err := client.Read(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("ws read failed")
				client.Close()
				break
			}

			conf, ok, err := chain.ParseConfirmation(msg)
			if err != nil {
				logger.Warn().Err(err).Msg("ws parse failed")
				continue
			}
			if !ok {
				continue
			}
			p.Nudge(conf.Destination)
		}

		time.Sleep(2 * time.Second)
	}
}
