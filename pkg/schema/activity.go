package schema

import (
	"fmt"
	"time"
)

// ActivityType is the closed set of interaction kinds.
type ActivityType string

const (
	ActivityMeeting  ActivityType = "meeting"
	ActivityCall     ActivityType = "call"
	ActivityEmail    ActivityType = "email"
	ActivityFollowUp ActivityType = "followup"
)

// ActivityTypes lists every valid activity type.
var ActivityTypes = []ActivityType{ActivityMeeting, ActivityCall, ActivityEmail, ActivityFollowUp}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityMeeting, ActivityCall, ActivityEmail, ActivityFollowUp:
		return true
	}
	return false
}

// ParseActivityType validates s as an ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown activity type %q", s)
	}
	return t, nil
}

// Activity is a scheduled or logged interaction.
// ClientID is a soft reference: it may point at a client that no longer exists.
type Activity struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
	Type        ActivityType `json:"type"`
	ClientID    string       `json:"clientId,omitempty"`
	CreatedBy   string       `json:"createdBy"`
	Completed   bool         `json:"completed"`
}

// ActivityFields holds the caller-supplied part of a new activity.
type ActivityFields struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
	Type        ActivityType `json:"type"`
	ClientID    string       `json:"clientId,omitempty"`
	Completed   bool         `json:"completed"`
}

// ActivityPatch is a partial update. Nil fields are left untouched;
// a ClientID pointing at "" unlinks the activity from its client.
type ActivityPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Date        *time.Time    `json:"date,omitempty"`
	Type        *ActivityType `json:"type,omitempty"`
	ClientID    *string       `json:"clientId,omitempty"`
	Completed   *bool         `json:"completed,omitempty"`
}

// Apply merges the set fields of p into a.
func (p ActivityPatch) Apply(a *Activity) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.ClientID != nil {
		a.ClientID = *p.ClientID
	}
	if p.Completed != nil {
		a.Completed = *p.Completed
	}
}
