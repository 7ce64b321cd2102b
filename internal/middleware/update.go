package middleware

import "github.com/go-telegram/bot/models"

// describe extracts the fields logged for every update.
func describe(update *models.Update) (updateType string, chatID, userID int64) {
	updateType = "unknown"
	switch {
	case update.Message != nil:
		updateType = "message"
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
	case update.CallbackQuery != nil:
		updateType = "callback_query"
		if update.CallbackQuery.Message.Message != nil {
			chatID = update.CallbackQuery.Message.Message.Chat.ID
		}
		userID = update.CallbackQuery.From.ID
	}
	return updateType, chatID, userID
}
