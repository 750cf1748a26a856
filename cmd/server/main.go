// Command server runs the query service.
//
// The server loads the newest database generation from the generation
// directory, then watches the directory and swaps in new generations
// without interrupting in-flight queries.
//
// # Usage
//
//	go run ./cmd/server --config=server.yaml
//	go run ./cmd/server --generations=./generations --open
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PinkeshGjr/PIRService/cmd/common"
	"github.com/PinkeshGjr/PIRService/server"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address")
		genDir      = flag.String("generations", "", "Generation directory to serve and watch")
		openMode    = flag.Bool("open", false, "Serve without token verification")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = common.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *genDir != "" {
		cfg.GenerationDir = *genDir
	}
	if *openMode {
		cfg.OpenMode = true
	}
	cfg.LogJSON = cfg.LogJSON || *logJSON
	cfg.LogDebug = cfg.LogDebug || *logDebug

	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug)

	verifier, err := common.BuildVerifier(cfg, log)
	if err != nil {
		log.Error("Verifier configuration error", "err", err)
		os.Exit(1)
	}

	svc, err := server.NewService(server.ServiceConfig{
		GenerationDir: cfg.GenerationDir,
		QueryTimeout:  cfg.QueryTimeout,
		MaxWorkers:    cfg.MaxWorkers,
		Verifier:      verifier,
		Log:           log,
	})
	if err != nil {
		log.Error("Service startup error", "err", err)
		os.Exit(1)
	}

	httpSrv, err := server.New(&server.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             60 * time.Second,
		Readiness:                svc.Ready,
	}, svc.Handler())
	if err != nil {
		log.Error("HTTP server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Generation watcher stopped", "err", err)
		}
	}()

	httpSrv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server...")
	cancel()
	httpSrv.Shutdown()
}
