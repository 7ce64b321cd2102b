package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/appealrouter/internal/domain"
)

// Register registers all command and callback handlers on the bot instance.
// Plain merchant messages reach HandleMessage through the bot's default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/register_merchant", bot.MatchTypePrefix, h.handleRegisterMerchant)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/register_trader_group", bot.MatchTypePrefix, h.handleRegisterTraderGroup)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/register_trader_username", bot.MatchTypePrefix, h.handleRegisterTraderUsername)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/listgroups", bot.MatchTypePrefix, h.handleListGroups)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/set_appeal_id_pos", bot.MatchTypePrefix, h.handleSetAppealIDPos)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/learn_appeal_id", bot.MatchTypePrefix, h.handleLearnAppealID)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unregister", bot.MatchTypePrefix, h.handleUnregister)

	// Decision callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, string(domain.ActionApprove)+"_", bot.MatchTypePrefix, h.handleDecision)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, string(domain.ActionDecline)+"_", bot.MatchTypePrefix, h.handleDecision)
}
