/*
Package httpserver runs the HTTP server of the provisioning backend.

The server mounts every handler that implements RouteRegistrar on a single chi
router, wraps requests with access logging and panic recovery, and adds the
operational endpoints:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/pprof - Profiling endpoints, when enabled

Prometheus metrics are served by a separate listener on MetricsAddr.

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":9090",
		Log:                      logger,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             10 * time.Second,
	}

	metricsSrv, _ := metrics.New(common.PackageName, cfg.MetricsAddr)
	server, err := httpserver.New(cfg, metricsSrv, provisionerHandler, adminHandler)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
