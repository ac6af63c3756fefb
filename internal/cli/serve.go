package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/frc-plan-sync/internal/config"
	"github.com/DoyleJ11/frc-plan-sync/internal/httpapi"
	"github.com/DoyleJ11/frc-plan-sync/internal/hub"
	"github.com/DoyleJ11/frc-plan-sync/internal/pgstore"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a planner server",
		Long: `Run the sync server. Sessions live in memory unless ` + config.EnvDatabaseURL + `
points at a Postgres database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Addr = addr
			}
			return Serve(cmd.Context(), cfg, a.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env "+config.EnvAddr+")")
	return cmd
}

// Serve runs the HTTP and websocket API until ctx is cancelled, then shuts
// down gracefully.
func Serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var backend remote.Store
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Warn("close database", zap.Error(err))
			}
		}()
		backend = pg
		log.Info("sessions stored in postgres")
	} else {
		backend = hub.NewStore(hub.NewHub(ctx, log))
		log.Info("sessions kept in memory")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(backend, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
