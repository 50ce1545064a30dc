package main

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/channel"
	"github.com/fyrsmithlabs/questboard/internal/config"
	"github.com/fyrsmithlabs/questboard/internal/events"
	"github.com/fyrsmithlabs/questboard/internal/store"
)

// dependencies holds the infrastructure questd owns.
type dependencies struct {
	store     *store.Store
	natsSrv   *natsserver.Server
	natsConn  *nats.Conn
	bridge    *channel.Bridge
	publisher events.Publisher
	channel   channel.Adapter
	logger    *zap.Logger
}

// initDependencies opens the store and, when configured, connects NATS and
// the collaboration channel. A partially built set is closed on error.
func initDependencies(cfg *config.Config, logger *zap.Logger) (_ *dependencies, err error) {
	d := &dependencies{
		publisher: events.Nop{},
		channel:   channel.Noop{},
		logger:    logger,
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.store, err = store.Open(cfg.Storage.Path, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Storage.Path, err)
	}
	logger.Info("store opened", zap.String("path", cfg.Storage.Path))

	if !cfg.NATS.Enabled {
		return d, nil
	}

	url := cfg.NATS.URL
	if cfg.NATS.Embedded {
		d.natsSrv, err = startEmbeddedNATS()
		if err != nil {
			return nil, err
		}
		url = d.natsSrv.ClientURL()
		logger.Info("embedded nats server started", zap.String("url", url))
	}

	d.natsConn, err = nats.Connect(url,
		nats.Name("questd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))

	d.publisher = events.NewNATSPublisher(d.natsConn, cfg.NATS.SubjectPrefix, logger.Named("events"))

	if !cfg.Channel.Enabled {
		return d, nil
	}
	timeout := cfg.Channel.RequestTimeout.Duration()
	d.channel = channel.NewLimited(
		channel.NewNATSAdapter(d.natsConn, timeout, logger.Named("channel")),
		cfg.Channel.RatePerSecond,
		cfg.Channel.Burst,
	)
	if cfg.NATS.Embedded {
		// Nothing else can reach an in-process server, so answer the
		// channel subjects locally.
		d.bridge, err = channel.Serve(d.natsConn, channel.Noop{}, logger.Named("channel.bridge"))
		if err != nil {
			return nil, fmt.Errorf("failed to start channel bridge: %w", err)
		}
	}
	logger.Info("collaboration channel enabled",
		zap.Duration("timeout", timeout),
		zap.Float64("rate_per_second", cfg.Channel.RatePerSecond),
		zap.Int("burst", cfg.Channel.Burst))
	return d, nil
}

func startEmbeddedNATS() (*natsserver.Server, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready")
	}
	return srv, nil
}

// Close releases resources in reverse order of acquisition.
func (d *dependencies) Close() {
	if d.bridge != nil {
		if err := d.bridge.Close(); err != nil {
			d.logger.Warn("failed to close channel bridge", zap.Error(err))
		}
	}
	if d.natsConn != nil {
		if err := d.natsConn.Drain(); err != nil {
			d.natsConn.Close()
		}
	}
	if d.natsSrv != nil {
		d.natsSrv.Shutdown()
		d.natsSrv.WaitForShutdown()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("failed to close store", zap.Error(err))
		}
	}
}
