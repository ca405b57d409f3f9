package model

import "time"

// Journal actions.
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionDelete    = "delete"
	ActionSaveTerms = "save_terms"
)

// JournalEntry records one applied change.
type JournalEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Kind      Kind      `json:"kind"`
	TargetID  uint      `json:"targetId"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
