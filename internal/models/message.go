package models

import "time"

// Message is one entry in an item's conversation thread. The log is
// append-only: bodies are never edited and rows are never deleted. The
// one mutable field is Meetup.Status on proposal messages.
type Message struct {
	ID               string         `json:"id"`
	ItemID           string         `json:"item_id"`
	SenderID         string         `json:"sender_id"`
	ReceiverID       string         `json:"receiver_id"`
	Body             string         `json:"body"`
	IsMeetupProposal bool           `json:"is_meetup_proposal"`
	Meetup           *MeetupDetails `json:"meetup,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// MeetupDetails carries the proposed meetup embedded in a proposal
// message. Date and Time are required on creation; Location is optional.
type MeetupDetails struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
}

// Meetup status values
const (
	MeetupPending   = "pending"
	MeetupConfirmed = "confirmed"
	MeetupDeclined  = "declined"
)

// ValidMeetupStatus reports whether s is a recognised meetup status.
func ValidMeetupStatus(s string) bool {
	switch s {
	case MeetupPending, MeetupConfirmed, MeetupDeclined:
		return true
	}
	return false
}
