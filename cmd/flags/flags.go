package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/sip-provisioning-backend/common"
	"github.com/ruteri/sip-provisioning-backend/config"
	"github.com/ruteri/sip-provisioning-backend/httpserver"
	"github.com/urfave/cli/v2"
)

// SetupLogger builds the process logger. Explicit log flags win over the
// logging section of cfg, which may be nil.
func SetupLogger(cCtx *cli.Context, cfg *config.Config) (log *slog.Logger) {
	opts := &common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	}
	if cfg != nil {
		if !cCtx.IsSet(LogDebugFlag.Name) {
			opts.Debug = cfg.Logging.Debug
		}
		if !cCtx.IsSet(LogJsonFlag.Name) {
			opts.JSON = cfg.Logging.JSON
		}
		if !cCtx.IsSet(LogServiceFlag.Name) && cfg.Logging.Service != "" {
			opts.Service = cfg.Logging.Service
		}
	}

	logger := common.SetupLogger(opts)

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads the --config file and lets explicitly set flags
// override the server section.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.Server.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(PprofFlag.Name) {
		cfg.Server.EnablePprof = cCtx.Bool(PprofFlag.Name)
	}
	if cCtx.IsSet(DrainSecondsFlag.Name) {
		cfg.Server.DrainSeconds = int(cCtx.Int64(DrainSecondsFlag.Name))
	}
	if cCtx.IsSet(StorageFlag.Name) {
		cfg.Storage.Backends = cCtx.StringSlice(StorageFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ConfigureServer(cfg *config.Config, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cfg.Server.ListenAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.Server.EnablePprof,
		DrainDuration:            cfg.DrainDuration(),
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              cfg.ReadTimeout(),
		WriteTimeout:             cfg.WriteTimeout(),
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: []string{"SIPPROV_CONFIG"},
	Usage:   "path to a YAML or TOML configuration file",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:  "storage",
	Usage: "storage backend URI for the registry snapshot, may be repeated (file://, s3://, vault://, ipfs://, nats://, sqlite://, postgres://)",
}

var ServerURLFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"SIPPROV_SERVER"},
	Usage:   "base URL of the provisioning server",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "sip-provisioning",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
