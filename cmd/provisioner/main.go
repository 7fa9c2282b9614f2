package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/sip-provisioning-backend/api/admin"
	"github.com/ruteri/sip-provisioning-backend/api/provisioner"
	"github.com/ruteri/sip-provisioning-backend/cmd/flags"
	"github.com/ruteri/sip-provisioning-backend/common"
	"github.com/ruteri/sip-provisioning-backend/config"
	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/events"
	"github.com/ruteri/sip-provisioning-backend/httpserver"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/ruteri/sip-provisioning-backend/metrics"
	"github.com/ruteri/sip-provisioning-backend/registry"
	"github.com/ruteri/sip-provisioning-backend/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = append([]cli.Flag{
	flags.ConfigFlag,
	flags.ListenAddrFlag,
	flags.StorageFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "sip-provisioner",
		Usage:  "Serve SIP desk phone provisioning files and the admin API",
		Flags:  serverFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := flags.SetupLogger(cCtx, cfg)

	ctx, cancel := context.WithTimeout(cCtx.Context, time.Minute)
	defer cancel()

	locations, err := cfg.StorageLocations()
	if err != nil {
		return err
	}

	storageFactory := storage.NewStorageBackendFactory(logger)
	backend, err := storageFactory.CreateMultiBackend(locations)
	if err != nil {
		logger.Error("Failed to create storage backend", "err", err)
		return err
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	metricsSrv, err := metrics.New(common.PackageName, cfg.Server.MetricsAddr)
	if err != nil {
		logger.Error("Failed to create metrics server", "err", err)
		return err
	}

	publisher, err := setupEvents(cfg, metricsSrv.Metrics(), logger)
	if err != nil {
		logger.Error("Failed to set up event publishers", "err", err)
		return err
	}
	defer publisher.Close()

	opts := []registry.Option{
		registry.WithEventPublisher(publisher),
		registry.WithSeedSettings(cfg.Settings.Seed()),
	}
	if cfg.Storage.SnapshotKey != "" {
		opts = append(opts, registry.WithSnapshotKey(cfg.Storage.SnapshotKey))
	}
	passphrase, err := cfg.Security.Passphrase()
	if err != nil {
		logger.Error("Failed to recover credential passphrase", "err", err)
		return err
	}
	if passphrase != "" {
		sealer, err := cryptoutils.NewPassphraseSealer(passphrase)
		if err != nil {
			return err
		}
		opts = append(opts, registry.WithSealer(sealer))
	} else {
		logger.Warn("No credential passphrase configured, SIP passwords are stored in plaintext")
	}

	store, err := registry.Open(ctx, backend, logger, opts...)
	if err != nil {
		logger.Error("Failed to open registry", "err", err, "backend", backend.LocationURI())
		return err
	}

	server, err := httpserver.New(
		flags.ConfigureServer(cfg, logger),
		metricsSrv,
		provisioner.NewHandler(store, store, publisher, metricsSrv.Metrics(), logger),
		admin.NewHandler(store, store, metricsSrv.Metrics(), logger),
	)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server",
		slog.String("backend", backend.LocationURI()),
		slog.Int("devices", len(store.List())))
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

// setupEvents connects the enabled event sinks. Metrics always receive events.
func setupEvents(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (interfaces.EventPublisher, error) {
	publishers := events.Multi{m}

	if mqttCfg := cfg.Events.MQTT; mqttCfg.Enabled {
		p, err := events.NewMQTTPublisher(events.MQTTOptions{
			Broker:      mqttCfg.Broker,
			ClientID:    mqttCfg.ClientID,
			Username:    mqttCfg.Username,
			Password:    mqttCfg.Password,
			TopicPrefix: mqttCfg.TopicPrefix,
			QoS:         byte(mqttCfg.QoS),
		}, logger)
		if err != nil {
			publishers.Close()
			return nil, err
		}
		publishers = append(publishers, p)
	}

	if natsCfg := cfg.Events.NATS; natsCfg.Enabled {
		p, err := events.NewNATSPublisher(natsCfg.URL, natsCfg.SubjectPrefix, logger)
		if err != nil {
			publishers.Close()
			return nil, err
		}
		publishers = append(publishers, p)
	}

	if influxCfg := cfg.Events.InfluxDB; influxCfg.Enabled {
		p, err := events.NewInfluxPublisher(events.InfluxOptions{
			URL:    influxCfg.URL,
			Token:  influxCfg.Token,
			Org:    influxCfg.Org,
			Bucket: influxCfg.Bucket,
		}, logger)
		if err != nil {
			publishers.Close()
			return nil, err
		}
		publishers = append(publishers, p)
	}

	logger.Info("Event publishers configured", slog.Int("count", len(publishers)-1))
	return publishers, nil
}
