package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"valorant-scout/internal/config"
	"valorant-scout/internal/constants"
	fxmodules "valorant-scout/internal/fx"
	"valorant-scout/internal/grid"
	"valorant-scout/internal/pipeline"
	"valorant-scout/internal/server"
	"valorant-scout/internal/vision"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runPipeline),
	).Run()
}

func runPipeline(
	lc fx.Lifecycle,
	cfg *config.Config,
	gridClient *grid.Client,
	poller *pipeline.StatePoller,
	producer *vision.FrameProducer,
	classifier *vision.FrameClassifier,
	srv *server.Server,
	hub *server.Hub,
	db *sql.DB,
	logger zerolog.Logger,
) {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: srv.Handler(),
	}

	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Resolve the feed schema once before the first poll.
			discoverCtx, done := context.WithTimeout(ctx, constants.GridAPITimeout)
			gridClient.DiscoverInventoryField(discoverCtx)
			done()

			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop

			wg.Add(3)
			go func() {
				defer wg.Done()
				poller.Run(runCtx)
			}()
			go func() {
				defer wg.Done()
				producer.Run(runCtx)
			}()
			go func() {
				defer wg.Done()
				classifier.Run(runCtx)
			}()

			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("server starting")
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer done()

			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
			}

			loopsDone := make(chan struct{})
			go func() {
				wg.Wait()
				close(loopsDone)
			}()
			select {
			case <-loopsDone:
			case <-shutdownCtx.Done():
				logger.Warn().Msg("pipeline loops did not stop within shutdown timeout")
			}

			hub.Close()

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing event archive")
			}

			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
