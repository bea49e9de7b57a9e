package model

import (
	"fmt"
	"time"
)

// ScopeDayLayout formats the calendar day evidence is grouped by.
const ScopeDayLayout = "2006-01-02"

// Evidence represents a row of the evidence table.
type Evidence struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	Description    string    `json:"description"`
	Done           bool      `json:"done"`
	FileURLs       []string  `json:"fileUrls"`
	Title          string    `json:"title"`
	CategoryID     int64     `json:"categoryId"`
	UserID         int64     `json:"userId"`
	ScopeDay       string    `json:"scopeDay"`
}

// DailyKey identifies the single session-scoped record allowed per user, category and day.
type DailyKey struct {
	UserID     int64
	CategoryID int64
	Day        string
}

// NewDailyKey derives the key for an event at t, with the day taken in loc.
func NewDailyKey(userID, categoryID int64, t time.Time, loc *time.Location) DailyKey {
	return DailyKey{
		UserID:     userID,
		CategoryID: categoryID,
		Day:        ScopeDay(t, loc),
	}
}

func (k DailyKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.UserID, k.CategoryID, k.Day)
}

// ScopeDay formats the calendar day of t in loc.
func ScopeDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ScopeDayLayout)
}
