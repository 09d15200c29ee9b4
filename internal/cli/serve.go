package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-order-bot/internal/catalog"
	"github.com/tbourn/go-order-bot/internal/dialog"
	httpapi "github.com/tbourn/go-order-bot/internal/http"
	"github.com/tbourn/go-order-bot/internal/observability"
	"github.com/tbourn/go-order-bot/internal/repo"
	"github.com/tbourn/go-order-bot/internal/scheduler"
	"github.com/tbourn/go-order-bot/internal/services"
	"github.com/tbourn/go-order-bot/internal/telegram"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeEvery      = time.Hour
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the bot, the reminder scheduler and the HTTP endpoints",
		Long:         "Receives updates by long polling, or by webhook when WEBHOOK_URL is set, and serves /health and /metrics on PORT.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.Config
	if err := cfg.RequireBot(); err != nil {
		return WrapExitError(ExitCommandError, "serve", err)
	}
	mode := telegram.SourceWebhook
	if cfg.Polling() {
		mode = telegram.SourcePolling
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version, mode)
	if err != nil {
		return WrapExitError(ExitFailure, "setup tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cat := catalog.New(a.sheets)
	cat.Refresh(ctx)
	policy := a.policy()
	machine := dialog.NewMachine(cat, services.NewOrderService(a.store, policy), policy)

	api, err := newBotAPI(cfg.Telegram)
	if err != nil {
		return WrapExitError(ExitFailure, "serve", err)
	}
	sender := telegram.NewSender(api)
	disp := telegram.NewDispatcher(machine, sender)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	bc := a.broadcaster(sender)
	daily := &scheduler.Daily{
		At:       cfg.Broadcast.At,
		Location: cfg.Business.Location,
		Job: func(ctx context.Context, at time.Time) {
			res, err := bc.Fire(ctx, at)
			if err != nil {
				log.Error().Err(err).Time("at", at).Msg("broadcast failed")
				return
			}
			if !res.Skipped {
				log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("broadcast done")
			}
		},
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		daily.Run(ctx)
	}()
	if a.db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purgeLoop(ctx, a)
		}()
	}

	var receiver *telegram.Dispatcher
	if !cfg.Polling() {
		receiver = disp
	}
	srv := newHTTPServer(cfg.Port, a, receiver)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", mode).Msg("http: listening")
		serveErr <- srv.ListenAndServe()
	}()

	pollDone := make(chan error, 1)
	if cfg.Polling() {
		go func() { pollDone <- telegram.Poll(ctx, api, disp) }()
	} else if err := telegram.SetWebhook(api, cfg.Telegram.WebhookURL, cfg.Telegram.Token, cfg.Telegram.WebhookSecret); err != nil {
		stop()
		shutdown(srv, &wg, disp)
		return WrapExitError(ExitFailure, "serve", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "serve http", err)
		}
	case err := <-pollDone:
		if err != nil {
			runErr = WrapExitError(ExitFailure, "long polling", err)
		} else {
			log.Warn().Msg("telegram: update stream closed")
		}
	}

	log.Info().Msg("shutting down")
	stop()
	shutdown(srv, &wg, disp)
	return runErr
}

// newHTTPServer builds the server for /health, /metrics and, when receiver
// is set, the webhook.
func newHTTPServer(port string, a *app, receiver *telegram.Dispatcher) *http.Server {
	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	deps := httpapi.Deps{DB: a.db}
	if receiver != nil {
		deps.Updates = receiver
	}
	httpapi.RegisterRoutes(r, deps, a.cfg)

	return &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           r,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
}

// shutdown stops accepting requests, then waits for background loops and
// in-flight dialogue turns.
func shutdown(srv *http.Server, wg *sync.WaitGroup, disp *telegram.Dispatcher) {
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	disp.Wait()
}

// purgeLoop drops expired update dedup records every purgeEvery.
func purgeLoop(ctx context.Context, a *app) {
	for scheduler.Wait(ctx, purgeEvery) {
		n, err := repo.PurgeUpdates(ctx, a.db, time.Now())
		if err != nil {
			log.Warn().Err(err).Msg("purge processed updates")
			continue
		}
		if n > 0 {
			log.Debug().Int64("purged", n).Msg("processed updates purged")
		}
	}
}
