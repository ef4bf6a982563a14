package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cadastral/tiler/metrics"
	"github.com/cadastral/tiler/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tiles and metadata.json straight from the archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := server.NewHandler(server.Config{
		ArchivePath: conf.Archive.Path,
		Scheme:      conf.Server.Scheme,
		CacheSize:   conf.Server.CacheSize,
		Logger:      log,
		Metrics:     metrics.NewMetrics(reg),
	})
	if err != nil {
		return err
	}
	defer h.Close()

	srv := &http.Server{
		Addr: conf.Server.Address,
		Handler: server.NewRouter(h, server.RouterOptions{
			CORS:      conf.Server.CORS,
			Gatherer:  reg,
			AccessLog: log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	SafeExitInst.Register(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("shutdown: %s", err)
		}
	})

	log.Infof("Starting tile server on %s for %s", conf.Server.Address, conf.Archive.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	flags := serveCmd.Flags()
	flags.String("address", "", "HTTP address to listen on")
	flags.Bool("cors", false, "allow cross-origin requests from any origin")
	flags.Int("cache-size", 0, "tile lookups kept in memory, 0 disables")
	bind(flags, map[string]string{
		"address":    "server.address",
		"cors":       "server.cors",
		"cache-size": "server.cacheSize",
	})
	rootCmd.AddCommand(serveCmd)
}
