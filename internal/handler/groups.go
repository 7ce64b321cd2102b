package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/telegram"
)

const startText = `Appeal router bot. Add @%s to a merchant group and a trader group, then register both.

Merchant groups post appeals here; each one is forwarded to the matching trader group with Approve and Decline buttons.

Commands:
/register_merchant - register this chat as a merchant group
/register_trader_group - register this chat as a trader group
/register_trader_username <username> - account tagged in reminders for this trader group
/set_appeal_id_pos <start> <length> - fixed position of the appeal id in merchant messages
/learn_appeal_id <appeal id> - reply to a sample message to learn the position
/listgroups - show registered groups
/unregister - remove this chat from the registry`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, b, update.Message, fmt.Sprintf(startText, h.botUsername))
}

func (h *Handler) handleRegisterMerchant(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	err := h.registry.RegisterMerchant(ctx, msg.Chat.ID, msg.Chat.Title)
	if err != nil {
		h.replyRegistryError(ctx, b, msg, "register merchant", err)
		return
	}
	slog.Info("merchant group registered", "chat_id", msg.Chat.ID, "title", msg.Chat.Title)
	h.tgLogger.LogRegistration(msg.Chat.ID, msg.Chat.Title, string(domain.RoleMerchant))
	h.reply(ctx, b, msg, "This group is now registered as a merchant group!")
}

func (h *Handler) handleRegisterTraderGroup(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	err := h.registry.RegisterTrader(ctx, msg.Chat.ID, msg.Chat.Title)
	if err != nil {
		h.replyRegistryError(ctx, b, msg, "register trader", err)
		return
	}
	slog.Info("trader group registered", "chat_id", msg.Chat.ID, "title", msg.Chat.Title)
	h.tgLogger.LogRegistration(msg.Chat.ID, msg.Chat.Title, string(domain.RoleTrader))
	h.reply(ctx, b, msg, "This group is now registered as a trader group!")
}

func (h *Handler) handleRegisterTraderUsername(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		h.reply(ctx, b, msg, "Usage: /register_trader_username <username>")
		return
	}
	if err := h.registry.BindTraderUsername(ctx, msg.Chat.ID, args[0]); err != nil {
		h.replyRegistryError(ctx, b, msg, "bind trader username", err)
		return
	}
	username, _ := h.registry.LookupTraderUsername(msg.Chat.ID)
	h.reply(ctx, b, msg, fmt.Sprintf("Reminders for this group will tag @%s.", username))
}

func (h *Handler) handleSetAppealIDPos(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) != 2 {
		h.reply(ctx, b, msg, "Usage: /set_appeal_id_pos <start> <length>")
		return
	}
	start, err1 := strconv.Atoi(args[0])
	length, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		h.reply(ctx, b, msg, "Start and length must be numbers.")
		return
	}
	if err := h.registry.SetAppealIDRule(ctx, msg.Chat.ID, start, length); err != nil {
		h.replyRegistryError(ctx, b, msg, "set appeal id rule", err)
		return
	}
	h.reply(ctx, b, msg, fmt.Sprintf("Appeal ID position set: start %d, length %d.", start, length))
}

func (h *Handler) handleLearnAppealID(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	args := commandArgs(msg.Text)
	if msg.ReplyToMessage == nil || len(args) != 1 {
		h.reply(ctx, b, msg, "Reply to a sample appeal message with /learn_appeal_id <appeal id>")
		return
	}
	start, length, err := h.registry.LearnAppealIDRule(ctx, msg.Chat.ID, messageText(msg.ReplyToMessage), args[0])
	if err != nil {
		h.replyRegistryError(ctx, b, msg, "learn appeal id rule", err)
		return
	}
	h.reply(ctx, b, msg, fmt.Sprintf("Appeal ID position learned: start %d, length %d.", start, length))
}

func (h *Handler) handleUnregister(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg, ok := h.groupCommand(ctx, b, update)
	if !ok {
		return
	}

	if err := h.registry.Unregister(ctx, msg.Chat.ID); err != nil {
		h.replyRegistryError(ctx, b, msg, "unregister group", err)
		return
	}
	slog.Info("group unregistered", "chat_id", msg.Chat.ID)
	h.reply(ctx, b, msg, "This group has been removed from the registry.")
}

func (h *Handler) handleListGroups(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, b, update.Message, h.formatGroups())
}

func (h *Handler) formatGroups() string {
	var sb strings.Builder

	sb.WriteString("Merchant groups:\n")
	merchants := h.registry.ListMerchants()
	if len(merchants) == 0 {
		sb.WriteString("  none\n")
	}
	for _, m := range merchants {
		fmt.Fprintf(&sb, "- %s (ID: %d)", m.Title, m.ID)
		if m.HasAppealIDRule() {
			fmt.Fprintf(&sb, " appeal id at %d, length %d", m.AppealIDStartPos, m.AppealIDLength)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nTrader groups:\n")
	traders := h.registry.ListTraders()
	if len(traders) == 0 {
		sb.WriteString("  none\n")
	}
	for _, t := range traders {
		fmt.Fprintf(&sb, "- %s (ID: %d)", t.Title, t.ID)
		if u, ok := h.registry.LookupTraderUsername(t.ID); ok {
			fmt.Fprintf(&sb, " @%s", u)
		} else {
			sb.WriteString(" no username")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// groupCommand checks that a mutating command was sent in a group by an admin.
func (h *Handler) groupCommand(ctx context.Context, b *bot.Bot, update *models.Update) (*models.Message, bool) {
	msg := update.Message
	if msg == nil {
		return nil, false
	}
	if !isGroupChat(msg.Chat) {
		h.reply(ctx, b, msg, "This command only works in groups.")
		return nil, false
	}
	if !h.isAdmin(msg) {
		h.reply(ctx, b, msg, "Only bot admins can do that.")
		return nil, false
	}
	return msg, true
}

func (h *Handler) isAdmin(msg *models.Message) bool {
	if msg.From == nil {
		return len(h.cfg.AdminIDs) == 0
	}
	return h.cfg.IsAdmin(msg.From.ID)
}

func (h *Handler) replyRegistryError(ctx context.Context, b *bot.Bot, msg *models.Message, op string, err error) {
	var text string
	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered):
		text = "This group is already registered in this role."
	case errors.Is(err, domain.ErrRegisteredAsOtherRole):
		text = "This group is already registered with a different role. Use /unregister first."
	case errors.Is(err, domain.ErrNotRegistered):
		text = "This group is not registered."
	case errors.Is(err, domain.ErrNotTraderGroup):
		text = "This group is not a registered trader group."
	case errors.Is(err, domain.ErrNotMerchantGroup):
		text = "This group is not a registered merchant group."
	case errors.Is(err, domain.ErrEmptyUsername):
		text = "Username must not be empty."
	case errors.Is(err, domain.ErrInvalidAppealIDRule):
		text = "Invalid appeal ID position. Start must be 0 or more, length must be positive, and the id must appear in the sample."
	default:
		slog.Error(op, "error", err, "chat_id", msg.Chat.ID)
		h.tgLogger.LogError(err, op)
		text = "Failed to save changes, please try again later."
	}
	h.reply(ctx, b, msg, text)
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, msg *models.Message, text string) {
	if err := telegram.Reply(ctx, b, msg, text); err != nil {
		slog.Error("reply", "error", err, "chat_id", msg.Chat.ID)
	}
}
