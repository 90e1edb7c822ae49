package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/eventlatency/config"
	"github.com/c360/eventlatency/health"
	"github.com/c360/eventlatency/pkg/retry"
)

const (
	natsReconnectWait = 2 * time.Second
	natsTimeout       = 5 * time.Second
	natsDrainTimeout  = 10 * time.Second
	streamTimeout     = 10 * time.Second
)

// connectNATS connects to cfg.URL and, when JetStream is enabled, returns a
// JetStream handle after creating cfg.Stream if one is named. An empty URL
// returns nil handles.
func connectNATS(
	ctx context.Context,
	cfg config.NATSConfig,
	clientName string,
	logger *slog.Logger,
) (*nats.Conn, jetstream.JetStream, error) {
	if cfg.URL == "" {
		return nil, nil, nil
	}

	slog.Info("Connecting to NATS", "url", cfg.URL, "jetstream", cfg.JetStream)

	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.Timeout(natsTimeout),
		nats.DrainTimeout(natsDrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "component", "nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "component", "nats", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug("NATS connection closed", "component", "nats")
		}),
	}

	nc, err := retry.DoWithResult(ctx, retry.Startup(), func() (*nats.Conn, error) {
		return nats.Connect(cfg.URL, opts...)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	if !cfg.JetStream {
		return nc, nil, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if cfg.Stream != "" {
		streamCtx, cancel := context.WithTimeout(ctx, streamTimeout)
		defer cancel()

		_, err := js.CreateOrUpdateStream(streamCtx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
		slog.Info("JetStream stream ready", "stream", cfg.Stream, "subject", cfg.Subject)
	}

	return nc, js, nil
}

// drainNATS flushes pending publishes and closes the connection
func drainNATS(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
		nc.Close()
	}
}

// natsHealth reports the connection state
func natsHealth(nc *nats.Conn) health.CheckFunc {
	return func() health.Status {
		return natsStatus(nc.Status())
	}
}

func natsStatus(status nats.Status) health.Status {
	switch status {
	case nats.CONNECTED:
		return health.NewHealthy("nats", "Connected")
	case nats.CONNECTING, nats.RECONNECTING, nats.DRAINING_PUBS, nats.DRAINING_SUBS:
		return health.NewDegraded("nats", fmt.Sprintf("Connection %s", status))
	default:
		return health.NewUnhealthy("nats", fmt.Sprintf("Connection %s", status))
	}
}
