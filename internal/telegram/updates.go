package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// PollTimeout is the long-polling timeout in seconds.
const PollTimeout = 60

// SecretHeader carries the webhook secret on every webhook delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Poll removes any registered webhook and feeds long-polled updates to d
// until ctx ends.
func Poll(ctx context.Context, api API, d *Dispatcher) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = PollTimeout
	updates := api.GetUpdatesChan(u)
	log.Info().Int("timeout_s", PollTimeout).Msg("telegram: long polling started")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Info().Msg("telegram: long polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			d.Receive(ctx, SourcePolling, upd)
		}
	}
}

// WebhookPath is the route Telegram posts updates to. The token in the path
// keeps the endpoint unguessable.
func WebhookPath(token string) string {
	return "/webhook/" + token
}

// SetWebhook registers baseURL+WebhookPath(token) with Telegram. secret, when
// set, is echoed back in SecretHeader on every delivery.
func SetWebhook(api API, baseURL, token, secret string) error {
	if baseURL == "" {
		return errors.New("webhook base URL is empty")
	}
	params := tgbotapi.Params{"url": strings.TrimRight(baseURL, "/") + WebhookPath(token)}
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message"]`

	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info().Str("base_url", baseURL).Msg("telegram: webhook registered")
	return nil
}
