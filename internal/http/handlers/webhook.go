package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-order-bot/internal/http/middleware"
	"github.com/tbourn/go-order-bot/internal/telegram"
)

// Receiver accepts an update for asynchronous processing. It reports false
// for updates that carry nothing to handle.
type Receiver interface {
	Receive(ctx context.Context, source string, u tgbotapi.Update) bool
}

// Deduper remembers accepted update ids. Seen returns true when updateID
// was already accepted.
type Deduper interface {
	Seen(ctx context.Context, updateID, chatID int64) (bool, error)
}

// Webhook receives Telegram updates.
//
// Telegram retries any delivery that is not answered with 2xx, so every
// well-formed update is acknowledged with 200 once it is queued. Turns run
// after the response; a slow store never holds the webhook open.
type Webhook struct {
	Token   string
	Secret  string // optional; compared to the secret header
	Updates Receiver
	Dedup   Deduper // optional
}

// Handle serves POST /webhook/:token.
func (h *Webhook) Handle(c *gin.Context) {
	if !equal(c.Param("token"), h.Token) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
		return
	}
	if h.Secret != "" && !equal(c.GetHeader(telegram.SecretHeader), h.Secret) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}

	var u tgbotapi.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "update too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}

	var chatID int64
	if u.Message != nil && u.Message.Chat != nil {
		chatID = u.Message.Chat.ID
		c.Set(middleware.ChatIDKey, chatID)
	}

	if h.Dedup != nil {
		seen, err := h.Dedup.Seen(c.Request.Context(), int64(u.UpdateID), chatID)
		switch {
		case err != nil:
			// Processing twice beats dropping the update.
			middleware.LoggerFrom(c).Warn().Err(err).Int("update_id", u.UpdateID).Msg("update dedup failed")
		case seen:
			telegram.CountUpdate(telegram.SourceWebhook, telegram.DispositionDuplicate)
			ok(c, http.StatusOK, gin.H{"ok": true, "duplicate": true})
			return
		}
	}

	h.Updates.Receive(c.Request.Context(), telegram.SourceWebhook, u)
	ok(c, http.StatusOK, gin.H{"ok": true})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
