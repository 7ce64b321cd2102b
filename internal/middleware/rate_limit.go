package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

const idleLimiterTTL = 30 * time.Minute

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiter hands out one token bucket per chat.
type ChatLimiter struct {
	mu        sync.Mutex
	chats     map[int64]*chatLimiter
	perMinute int
	lastSweep time.Time
	now       func() time.Time
}

func NewChatLimiter(perMinute int) *ChatLimiter {
	return &ChatLimiter{
		chats:     make(map[int64]*chatLimiter),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow consumes a token for chatID. A zero per-minute budget disables limiting.
func (l *ChatLimiter) Allow(chatID int64) bool {
	if l.perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for id, c := range l.chats {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(l.chats, id)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.chats[chatID]
	if !ok {
		c = &chatLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.chats[chatID] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimit returns middleware that drops inbound messages from chats over
// their per-minute budget. Callback queries and chats for which exempt
// reports true are never limited.
func RateLimit(limiter *ChatLimiter, exempt func(chatID int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if exempt != nil && exempt(chatID) {
				next(ctx, b, update)
				return
			}
			if !limiter.Allow(chatID) {
				slog.Warn("rate limited", "chat_id", chatID, "limit_per_minute", limiter.perMinute)
				return
			}

			next(ctx, b, update)
		}
	}
}
