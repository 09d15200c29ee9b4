// Package telegram connects the dialogue to the Telegram Bot API: it sends
// replies with reply keyboards, receives updates by long polling or webhook
// and serializes each chat's updates through the dialogue machine.
package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-order-bot/internal/dialog"
	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/scheduler"
)

// API is the subset of *tgbotapi.BotAPI used by the bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// maxRetryAfter caps how long a flood-control reply may delay a send.
const maxRetryAfter = 30 * time.Second

// Sender delivers dialogue replies and broadcast notices.
type Sender struct {
	API API
	// Wait blocks for a flood-control delay; defaults to scheduler.Wait.
	Wait func(ctx context.Context, d time.Duration) bool
}

// NewSender returns a Sender over api.
func NewSender(api API) *Sender {
	return &Sender{API: api, Wait: scheduler.Wait}
}

// Send delivers one reply. A reply with keyboard rows replaces the chat's
// reply keyboard.
func (s *Sender) Send(ctx context.Context, chatID domain.ChatID, r dialog.Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if len(r.Keyboard) > 0 {
		msg.ReplyMarkup = Keyboard(r.Keyboard)
	}
	return s.send(ctx, msg)
}

// Notify sends plain text without touching the keyboard.
func (s *Sender) Notify(ctx context.Context, chatID domain.ChatID, text string) error {
	return s.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// send performs the API call, retrying once when Telegram answers with a
// retry_after hint.
func (s *Sender) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.API.Send(msg)
	d, retry := retryAfter(err)
	if !retry {
		return err
	}
	log.Warn().Int64("chat_id", msg.ChatID).Dur("retry_after", d).Msg("telegram flood control, retrying")
	wait := s.Wait
	if wait == nil {
		wait = scheduler.Wait
	}
	if !wait(ctx, d) {
		return ctx.Err()
	}
	_, err = s.API.Send(msg)
	return err
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return 0, false
	}
	d := time.Duration(apiErr.RetryAfter) * time.Second
	if d > maxRetryAfter {
		return 0, false
	}
	return d, true
}

// Keyboard builds a resized reply keyboard from label rows.
func Keyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	kb := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		kb = append(kb, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(kb...)
	markup.ResizeKeyboard = true
	return markup
}
