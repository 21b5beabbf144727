package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/danmuck/bondx/internal/config"
	"github.com/danmuck/bondx/internal/exchange"
	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/observability"
)

func newSink(output string, logger zerolog.Logger, w io.Writer) exchange.Sink {
	switch output {
	case config.OutputLog:
		return exchange.LogSink{Logger: logger}
	case config.OutputText:
		return exchange.NewTextSink(w)
	default:
		return nil
	}
}

func runExchange(ctx context.Context, cfg config.ExchangeConfig, stderr io.Writer) error {
	logger := observability.InitLogger("bondx")
	ex := exchange.New(cfg, exchange.WithSink(newSink(cfg.Output, logger, stderr)))

	adminCtx, stopAdmin := context.WithCancel(ctx)
	defer stopAdmin()
	adminErr := make(chan error, 1)
	if cfg.AdminAddr != "" {
		admin := observability.NewAdminServer(observability.AdminConfig{
			ID:          fmt.Sprintf("bondx-%s", cfg.Role),
			Addr:        cfg.AdminAddr,
			CorsOrigins: cfg.CorsOrigins,
			Logger:      logger.With().Str("run_id", ex.RunID()).Logger(),
			Status:      func() any { return ex.Status() },
			Ready:       ex.Ready,
		})
		go func() {
			adminErr <- admin.Run(adminCtx)
		}()
	} else {
		adminErr <- nil
	}

	summary, err := ex.Run(ctx)
	stopAdmin()
	if aerr := <-adminErr; aerr != nil {
		err = errors.Join(err, fmt.Errorf("admin server: %w", aerr))
	}
	logs.Infof("bondx.run role=%s run_id=%s sent=%d received=%d elapsed=%s",
		summary.Role, summary.RunID, summary.Sent, summary.Received, summary.Elapsed)
	return err
}
