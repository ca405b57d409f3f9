package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bgp-cmdb/pkg/api"
	"bgp-cmdb/pkg/cascade"
	"bgp-cmdb/pkg/cmdb"
	"bgp-cmdb/pkg/config"
	"bgp-cmdb/pkg/db"
	"bgp-cmdb/pkg/journal"
	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
	"bgp-cmdb/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the CMDB HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	graph := cascade.DefaultGraph()
	if err := graph.Validate(model.ForeignKeys); err != nil {
		return fmt.Errorf("deletion policy: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var j journal.Journal = journal.NewMemory(journal.DefaultCapacity)
	if cfg.JournalPath != "" {
		if j, err = journal.OpenSQLite(ctx, cfg.JournalPath); err != nil {
			return err
		}
	}
	defer j.Close()

	hub := api.NewEventHub()
	svc := cmdb.New(st,
		cmdb.WithGraph(graph),
		cmdb.WithJournal(j),
		cmdb.WithListener(hub),
	)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, svc, hub, cfg.MetricsEnabled)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Instrument(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.TLSEnabled() {
		if srv.TLSConfig, err = api.ServerTLSConfig(cfg.TLSCert, cfg.TLSKey); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    cfg.ListenAddr,
			"store":   cfg.Store,
			"tls":     cfg.TLSEnabled(),
			"version": version.String(),
		}).Info("cmdb listening")
		if cfg.TLSEnabled() {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMySQL:
		gdb, err := db.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, err
		}
		return store.NewGormStore(gdb), nil
	default:
		logrus.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	}
}
