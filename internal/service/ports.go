package service

import (
	"context"

	"github.com/set-night/appealrouter/internal/domain"
)

// DocumentStore is the durable key-value contract behind the registry and the
// appeal cache. Load returns domain.ErrDocumentNotFound for absent documents.
type DocumentStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// SendOptions carries optional interactive controls and a message to reply to.
type SendOptions struct {
	Controls []domain.Control
	ReplyTo  int
}

// Messenger is the chat transport. Failures are reported wrapped with domain.ErrTransport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	SendMedia(ctx context.Context, chatID int64, media domain.Media, caption string, opts SendOptions) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerControl(ctx context.Context, controlID, text string) error
}

// StatusProvider reports the external status of an appeal. The second result
// is false whenever the status could not be determined.
type StatusProvider interface {
	Status(ctx context.Context, appealID string) (domain.AppealStatus, bool)
}

// Reporter mirrors notable events to an operator channel.
type Reporter interface {
	LogError(err error, context string)
	LogAppealResolved(appealID, result, by string)
}

type nopReporter struct{}

func (nopReporter) LogError(error, string)                   {}
func (nopReporter) LogAppealResolved(string, string, string) {}
