// Package serve implements the serve command running the HTTP API.
package serve

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mealsnap/mealsnap-go/internal/api"
	"github.com/mealsnap/mealsnap-go/internal/app"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MealSnap HTTP API",
		Long:  `Serve the capture, analyze and save workflow and the meal history over a JSON HTTP API.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				settings.WebServer.Listen = listen
			}
			return run(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on, overrides webserver.listen")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("error releasing resources", logger.Error(err))
		}
	}()

	server, err := api.New(api.ConfigFromSettings(settings), a.Pipeline, a.Gateway, api.WithMetrics(a.Metrics))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if a.Metrics != nil {
		g.Go(func() error {
			return reportStoredMeals(gctx, a.Store, a.Metrics.Pipeline, storedMealsInterval, log)
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

// storedMealsInterval is how often the stored meals gauge is refreshed.
const storedMealsInterval = time.Minute

type mealCounter interface {
	Count(ctx context.Context) (int64, error)
}

type storedMealsGauge interface {
	SetMealsStored(n int64)
}

// reportStoredMeals refreshes gauge from store every interval until ctx is done.
// Count failures are logged and retried on the next tick.
func reportStoredMeals(ctx context.Context, store mealCounter, gauge storedMealsGauge, interval time.Duration, log logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := store.Count(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Warn("failed to count stored meals", logger.Error(err))
		default:
			gauge.SetMealsStored(n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
