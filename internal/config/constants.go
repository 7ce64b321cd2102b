package config

import "time"

const (
	// Reminder scheduler
	SweepPeriod = 60 * time.Second

	// Retry policy for reposting a decided appeal
	RepostAttempts = 3
	RepostBackoff  = 2 * time.Second

	// Retry policy for reminders
	ReminderAttempts = 3
	ReminderBackoff  = 5 * time.Second

	// Media attachments kept for the decision round-trip
	MediaStashTTL = 24 * time.Hour

	// Trader group titles look like "Alice | Trader"
	TraderTitleDelimiter = " | trader"

	// Files
	GroupsDocument  = "groups"
	AppealsDocument = "appeals"
)

// ReminderIntervals are measured from the moment an appeal was forwarded.
var ReminderIntervals = []time.Duration{1 * time.Minute, 4 * time.Minute, 8 * time.Minute}

// AcceptedDocumentMIME lists document types forwarded alongside an appeal.
var AcceptedDocumentMIME = []string{"image/jpeg", "image/png", "application/pdf"}

// AcceptedVideoMIME applies to both videos and animations.
const AcceptedVideoMIME = "video/mp4"
