package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	MaxMessageLen = 4096
	MaxCaptionLen = 1024
)

// SendLongMessage sends a potentially long plain-text message, splitting it into parts if needed.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, replyToID *int) error {
	parts := SplitMessage(text, MaxMessageLen)

	for _, part := range parts {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if replyToID != nil {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID: *replyToID,
			}
			replyToID = nil // only reply to first part
		}

		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	return nil
}

// Reply answers msg in its own chat.
func Reply(ctx context.Context, b *bot.Bot, msg *models.Message, text string) error {
	id := msg.ID
	return SendLongMessage(ctx, b, msg.Chat.ID, text, &id)
}
