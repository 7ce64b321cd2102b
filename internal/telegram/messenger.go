package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/service"
)

// Messenger sends appeal traffic through the Telegram Bot API. Media is
// re-sent by file id, never downloaded.
type Messenger struct {
	bot *bot.Bot
}

func NewMessenger(b *bot.Bot) *Messenger {
	return &Messenger{bot: b}
}

var _ service.Messenger = (*Messenger)(nil)

func replyParams(opts service.SendOptions) *models.ReplyParameters {
	if opts.ReplyTo == 0 {
		return nil
	}
	return &models.ReplyParameters{MessageID: opts.ReplyTo, AllowSendingWithoutReply: true}
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, opts service.SendOptions) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            Truncate(text, MaxMessageLen),
		ReplyParameters: replyParams(opts),
	}
	if len(opts.Controls) > 0 {
		params.ReplyMarkup = ControlsKeyboard(opts.Controls)
	}

	msg, err := m.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, transportErr("send message", err)
	}
	return msg.ID, nil
}

func (m *Messenger) SendMedia(ctx context.Context, chatID int64, media domain.Media, caption string, opts service.SendOptions) (int, error) {
	file := &models.InputFileString{Data: media.FileID}
	caption = Truncate(caption, MaxCaptionLen)

	var markup models.ReplyMarkup
	if len(opts.Controls) > 0 {
		markup = ControlsKeyboard(opts.Controls)
	}

	var (
		msg *models.Message
		err error
	)
	switch media.Kind {
	case domain.MediaPhoto:
		msg, err = m.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          chatID,
			Photo:           file,
			Caption:         caption,
			ReplyMarkup:     markup,
			ReplyParameters: replyParams(opts),
		})
	case domain.MediaDocument:
		msg, err = m.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:          chatID,
			Document:        file,
			Caption:         caption,
			ReplyMarkup:     markup,
			ReplyParameters: replyParams(opts),
		})
	case domain.MediaVideo:
		msg, err = m.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:          chatID,
			Video:           file,
			Caption:         caption,
			ReplyMarkup:     markup,
			ReplyParameters: replyParams(opts),
		})
	case domain.MediaAnimation:
		msg, err = m.bot.SendAnimation(ctx, &bot.SendAnimationParams{
			ChatID:          chatID,
			Animation:       file,
			Caption:         caption,
			ReplyMarkup:     markup,
			ReplyParameters: replyParams(opts),
		})
	default:
		return m.SendText(ctx, chatID, caption, opts)
	}
	if err != nil {
		return 0, transportErr("send "+string(media.Kind), err)
	}
	return msg.ID, nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := m.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		return transportErr("delete message", err)
	}
	return nil
}

func (m *Messenger) AnswerControl(ctx context.Context, controlID, text string) error {
	if _, err := m.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: controlID,
		Text:            text,
	}); err != nil {
		return transportErr("answer callback", err)
	}
	return nil
}
