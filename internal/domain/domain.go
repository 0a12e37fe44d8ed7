package domain

import "time"

type UserSettings struct {
	UserID int64
	Tier   string
}

// SummaryRecord is one delivered summary kept in history.
type SummaryRecord struct {
	ID        int64
	UserID    int64
	Tier      string
	Summary   string
	Chunks    int
	CreatedAt time.Time
}
