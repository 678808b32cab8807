package model

import "time"

// UsageCounter counts actions per user per calendar day. Rows are never
// deleted.
type UsageCounter struct {
	UserID     string    `json:"user_id"`
	ActionType string    `json:"action_type"`
	ActionDate time.Time `json:"action_date"`
	Count      int       `json:"count"`
}

const ActionBackup = "backup"
