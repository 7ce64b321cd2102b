package handler

import (
	"slices"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/service"
)

func inboundFromMessage(msg *models.Message) service.InboundMessage {
	return service.InboundMessage{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		MessageID: msg.ID,
		Text:      messageText(msg),
		Media:     extractMedia(msg),
	}
}

func messageText(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// extractMedia returns the attachment forwarded with an appeal, if it is of an
// accepted kind. For photos the largest size is used.
func extractMedia(msg *models.Message) *domain.Media {
	switch {
	case len(msg.Photo) > 0:
		return &domain.Media{Kind: domain.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Document != nil && slices.Contains(config.AcceptedDocumentMIME, msg.Document.MimeType):
		return &domain.Media{Kind: domain.MediaDocument, FileID: msg.Document.FileID}
	case msg.Video != nil && msg.Video.MimeType == config.AcceptedVideoMIME:
		return &domain.Media{Kind: domain.MediaVideo, FileID: msg.Video.FileID}
	case msg.Animation != nil && msg.Animation.MimeType == config.AcceptedVideoMIME:
		return &domain.Media{Kind: domain.MediaAnimation, FileID: msg.Animation.FileID}
	}
	return nil
}

// responderName is how a trader is shown in the status line after a decision.
func responderName(u models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// commandArgs drops the command itself ("/cmd@bot") and returns the rest.
func commandArgs(text string) []string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	return parts[1:]
}

func isGroupChat(chat models.Chat) bool {
	return chat.Type == "group" || chat.Type == "supergroup"
}
