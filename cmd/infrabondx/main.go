// Command infrabondx runs the InfraBondX backend: the REST API, database
// migrations and the demo seed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"infrabondx/internal/config"
	"infrabondx/internal/fraud"
	"infrabondx/internal/ledger"
	"infrabondx/internal/seed"
	"infrabondx/internal/server"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/db"
)

var (
	cfgFile string
	cfg     config.Config
	log     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "infrabondx",
		Short:         "Infrastructure bond funding backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			zcfg := zap.NewProductionConfig()
			zcfg.EncoderConfig.TimeKey = "ts"
			log, err = zcfg.Build()
			if err != nil {
				return err
			}
			cfg, err = config.Load(cfgFile)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*store.Store, func(), error) {
	conn, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store.New(conn), func() { _ = conn.Close() }, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if cfg.Seed.OnStart {
				if err := seed.Run(ctx, st, log); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}

			rules := fraud.DefaultRules()
			if cfg.Fraud.RulesFile != "" {
				rules, err = fraud.LoadRules(cfg.Fraud.RulesFile)
				if err != nil {
					return err
				}
			}
			engine, err := fraud.New(rules)
			if err != nil {
				return err
			}

			lg := ledger.New(st, log)
			auth := authn.New(cfg.Auth.JWTSecret)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           server.New(st, lg, auth, engine, log).Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			log.Info("migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset if the database is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			return seed.Run(cmd.Context(), st, log)
		},
	}
}
