package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type AppealStatus string

const AppealStatusPending AppealStatus = "pending"

// IsResolved reports whether the external provider considers the appeal closed.
func (s AppealStatus) IsResolved() bool {
	return s != "" && s != AppealStatusPending
}

// AppealKey identifies an open appeal: the trader chat it was forwarded to and
// the merchant message it came from.
type AppealKey struct {
	TraderChatID int64
	MessageID    int
}

func (k AppealKey) String() string {
	return fmt.Sprintf("%d_%d", k.TraderChatID, k.MessageID)
}

func ParseAppealKey(s string) (AppealKey, error) {
	chat, msg, ok := strings.Cut(s, "_")
	if !ok {
		return AppealKey{}, fmt.Errorf("%w: %q", ErrInvalidAppealKey, s)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return AppealKey{}, fmt.Errorf("%w: %q", ErrInvalidAppealKey, s)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil {
		return AppealKey{}, fmt.Errorf("%w: %q", ErrInvalidAppealKey, s)
	}
	return AppealKey{TraderChatID: chatID, MessageID: msgID}, nil
}

// SynthesizedAppealID is used when no identifier can be read from the message.
func SynthesizedAppealID(messageID int) string {
	return fmt.Sprintf("APPEAL_%d", messageID)
}

// AppealRecord is one forwarded appeal awaiting a decision.
type AppealRecord struct {
	Key            AppealKey
	AppealID       string
	CreatedAt      time.Time
	TraderUsername string
	ChatID         int64
	Reminded       map[time.Duration]bool
}

func (a *AppealRecord) WasReminded(interval time.Duration) bool {
	return a.Reminded[interval]
}

func (a *AppealRecord) MarkReminded(interval time.Duration) {
	if a.Reminded == nil {
		a.Reminded = map[time.Duration]bool{}
	}
	a.Reminded[interval] = true
}

func (a *AppealRecord) Clone() *AppealRecord {
	c := *a
	c.Reminded = make(map[time.Duration]bool, len(a.Reminded))
	for k, v := range a.Reminded {
		c.Reminded[k] = v
	}
	return &c
}

const remindedPrefix = "reminded_"

// ReminderMarker renders the persisted marker key for an interval, e.g. "reminded_60.0".
func ReminderMarker(interval time.Duration) string {
	return remindedPrefix + strconv.FormatFloat(interval.Seconds(), 'f', 1, 64)
}

func parseReminderMarker(key string) (time.Duration, bool) {
	raw, ok := strings.CutPrefix(key, remindedPrefix)
	if !ok {
		return 0, false
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

type appealFields struct {
	Timestamp      string `json:"timestamp"`
	TraderUsername string `json:"trader_username"`
	ChatID         int64  `json:"chat_id"`
	AppealID       string `json:"appeal_id"`
}

func (a AppealRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"timestamp":       a.CreatedAt.Format(time.RFC3339Nano),
		"trader_username": a.TraderUsername,
		"chat_id":         a.ChatID,
		"appeal_id":       a.AppealID,
	}
	intervals := make([]time.Duration, 0, len(a.Reminded))
	for d, sent := range a.Reminded {
		if sent {
			intervals = append(intervals, d)
		}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })
	for _, d := range intervals {
		out[ReminderMarker(d)] = true
	}
	return json.Marshal(out)
}

func (a *AppealRecord) UnmarshalJSON(data []byte) error {
	var f appealFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	created, err := parseTimestamp(f.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	a.AppealID = f.AppealID
	a.CreatedAt = created
	a.TraderUsername = f.TraderUsername
	a.ChatID = f.ChatID
	a.Reminded = map[time.Duration]bool{}
	for k, v := range raw {
		d, ok := parseReminderMarker(k)
		if !ok {
			continue
		}
		var sent bool
		if err := json.Unmarshal(v, &sent); err == nil && sent {
			a.Reminded[d] = true
		}
	}
	return nil
}

// Timestamps written by older deployments carry no zone offset and are local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Appeals is the persisted appeal cache document, keyed by AppealKey.String().
type Appeals map[string]*AppealRecord

func (a Appeals) Clone() Appeals {
	c := make(Appeals, len(a))
	for k, v := range a {
		c[k] = v.Clone()
	}
	return c
}
