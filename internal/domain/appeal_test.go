package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppealKey(t *testing.T) {
	key := AppealKey{TraderChatID: -1001234, MessageID: 42}
	assert.Equal(t, "-1001234_42", key.String())

	parsed, err := ParseAppealKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	for _, bad := range []string{"", "abc", "1_x", "x_1", "12"} {
		_, err := ParseAppealKey(bad)
		assert.ErrorIs(t, err, ErrInvalidAppealKey, bad)
	}
}

func TestReminderMarker(t *testing.T) {
	assert.Equal(t, "reminded_60.0", ReminderMarker(time.Minute))
	assert.Equal(t, "reminded_480.0", ReminderMarker(8*time.Minute))
}

func TestAppealRecordJSON(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := AppealRecord{
		AppealID:       "3f1c2b9e-8a7d-4c6b-9e5f-1a2b3c4d5e6f",
		CreatedAt:      created,
		TraderUsername: "alice",
		ChatID:         -200,
	}
	rec.MarkReminded(time.Minute)
	rec.MarkReminded(4 * time.Minute)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["reminded_60.0"])
	assert.Equal(t, true, raw["reminded_240.0"])
	assert.NotContains(t, raw, "reminded_480.0")
	assert.Equal(t, "alice", raw["trader_username"])

	var back AppealRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.CreatedAt.Equal(created))
	assert.True(t, back.WasReminded(time.Minute))
	assert.True(t, back.WasReminded(4*time.Minute))
	assert.False(t, back.WasReminded(8*time.Minute))
	assert.Equal(t, rec.AppealID, back.AppealID)
	assert.Equal(t, int64(-200), back.ChatID)
}

func TestAppealRecordLegacyDocument(t *testing.T) {
	data := []byte(`{
		"timestamp": "2025-03-01T10:00:00.123456",
		"trader_username": "",
		"chat_id": -200,
		"appeal_id": "APPEAL_7",
		"reminded_60": true,
		"reminded_240.0": false,
		"reminded_oops": true
	}`)

	var rec AppealRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	want := time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.Local)
	assert.True(t, rec.CreatedAt.Equal(want), "got %v", rec.CreatedAt)
	assert.True(t, rec.WasReminded(time.Minute))
	assert.False(t, rec.WasReminded(4*time.Minute))
	assert.Len(t, rec.Reminded, 1)
}

func TestAppealRecordBadTimestamp(t *testing.T) {
	var rec AppealRecord
	err := json.Unmarshal([]byte(`{"timestamp":"yesterday","chat_id":1,"appeal_id":"x"}`), &rec)
	assert.Error(t, err)
}

func TestAppealRecordClone(t *testing.T) {
	rec := &AppealRecord{AppealID: "a"}
	rec.MarkReminded(time.Minute)

	c := rec.Clone()
	c.MarkReminded(4 * time.Minute)

	assert.False(t, rec.WasReminded(4*time.Minute))
	assert.True(t, c.WasReminded(time.Minute))
}

func TestAppealStatusIsResolved(t *testing.T) {
	assert.False(t, AppealStatus("").IsResolved())
	assert.False(t, AppealStatusPending.IsResolved())
	assert.True(t, AppealStatus("approved").IsResolved())
	assert.True(t, AppealStatus("declined").IsResolved())
}
