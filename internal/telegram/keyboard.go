package telegram

import (
	"github.com/go-telegram/bot/models"
	"github.com/set-night/appealrouter/internal/domain"
)

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// ControlsKeyboard lays controls out on a single row.
func ControlsKeyboard(controls []domain.Control) *models.InlineKeyboardMarkup {
	row := make([]models.InlineKeyboardButton, 0, len(controls))
	for _, c := range controls {
		row = append(row, InlineButton(c.Text, c.Data))
	}
	return InlineKeyboard(ButtonRow(row...))
}
