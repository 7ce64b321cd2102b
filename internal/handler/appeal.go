package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/service"
)

// HandleMessage is the bot's default handler. It passes messages that are not
// commands to the appeal service, which ignores chats that are not merchant groups.
func (h *Handler) HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From != nil && msg.From.IsBot {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	if err := h.appeals.HandleInbound(ctx, inboundFromMessage(msg)); err != nil {
		slog.Error("handle appeal message", "error", err, "chat_id", msg.Chat.ID, "message_id", msg.ID)
		h.tgLogger.LogError(err, "handle appeal message")
	}
}

func (h *Handler) handleDecision(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	msg := cq.Message.Message
	if msg == nil {
		// The control message is too old to be delivered with the callback.
		_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            "This appeal message is no longer available.",
		})
		return
	}

	err := h.appeals.ResolveByDecision(ctx, service.Decision{
		ControlID:        cq.ID,
		Data:             cq.Data,
		TraderChatID:     msg.Chat.ID,
		ControlMessageID: msg.ID,
		Responder:        responderName(cq.From),
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPersistence):
		slog.Error("resolve decision", "error", err, "data", cq.Data)
		h.tgLogger.LogError(err, "resolve decision")
	default:
		slog.Warn("rejected decision", "error", err, "data", cq.Data, "chat_id", msg.Chat.ID)
	}
}
