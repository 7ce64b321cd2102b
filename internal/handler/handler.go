package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/service"
	"github.com/set-night/appealrouter/internal/telegram"
)

// Handler holds all dependencies needed by command, callback and message handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	registry    *service.GroupRegistry
	appeals     *service.AppealService
	tgLogger    *telegram.TelegramLogger
	botUsername string
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Registry    *service.GroupRegistry
	Appeals     *service.AppealService
	TgLogger    *telegram.TelegramLogger
	BotUsername string
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		registry:    deps.Registry,
		appeals:     deps.Appeals,
		tgLogger:    deps.TgLogger,
		botUsername: deps.BotUsername,
	}
}
