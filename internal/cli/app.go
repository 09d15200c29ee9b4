package cli

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-bot/internal/config"
	"github.com/tbourn/go-order-bot/internal/repo"
	"github.com/tbourn/go-order-bot/internal/services"
	"github.com/tbourn/go-order-bot/internal/sheets"
	"github.com/tbourn/go-order-bot/internal/store"
	"github.com/tbourn/go-order-bot/internal/telegram"
)

// app holds the store wiring shared by the commands.
type app struct {
	cfg    config.Config
	db     *gorm.DB // nil for the memory driver
	sheets sheets.Spreadsheet
	store  *store.Store
}

// openApp connects the store and heals its schema.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	creds, err := repo.ParseCredentials(cfg.Store.Credentials)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "store credentials", err)
	}

	a := &app{cfg: cfg}
	if creds.Driver == repo.DriverMemory {
		log.Warn().Msg("store: memory driver, orders are lost on restart")
		a.sheets = sheets.NewMemory()
	} else {
		db, err := repo.Open(creds)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "open store", err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, WrapExitError(ExitFailure, "migrate store", err)
		}
		a.db = db
		a.sheets = repo.NewSpreadsheet(db, cfg.Store.SpreadsheetID)
		log.Info().Str("driver", creds.Driver).Str("spreadsheet", cfg.Store.SpreadsheetID).Msg("store: connected")
	}

	a.store = store.New(a.sheets)
	if err := a.store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, WrapExitError(ExitFailure, "ensure schema", err)
	}
	return a, nil
}

// Close releases the database connection, if any.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// policy returns the ordering rules from the configuration.
func (a *app) policy() services.Policy {
	return services.Policy{Cutoff: a.cfg.Business.Cutoff, Location: a.cfg.Business.Location}
}

// broadcaster wires the morning reminder to n.
func (a *app) broadcaster(n services.Notifier) *services.Broadcaster {
	return &services.Broadcaster{
		Recipients: a.store,
		Notifier:   n,
		Text:       a.cfg.Broadcast.Text,
		Days:       a.cfg.Broadcast.Days,
		Limiter:    rate.NewLimiter(rate.Limit(a.cfg.Broadcast.RPS), 1),
	}
}

// newBotAPI authorizes against Telegram. Tests replace it.
var newBotAPI = func(cfg config.TelegramConfig) (telegram.API, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info().Str("bot", api.Self.UserName).Msg("telegram: authorized")
	return api, nil
}
