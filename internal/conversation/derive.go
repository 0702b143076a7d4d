// Package conversation holds the pure derivations over an item's
// message log: ordering, day grouping, sender direction, meetup status
// and unread counts. Every consumer shares these; nothing here touches
// a backend.
package conversation

import (
	"sort"
	"time"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

// Sender directions relative to a viewer.
const (
	DirectionOutgoing = "buyer"
	DirectionIncoming = "seller"
)

// Sort orders messages ascending by creation time. The sort is stable,
// so messages with equal timestamps keep their append order.
func Sort(msgs []models.Message) []models.Message {
	out := append([]models.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Direction reports how a message renders for a viewer: messages the
// viewer authored display on the outgoing side.
func Direction(msg models.Message, viewerID string) string {
	if msg.SenderID == viewerID {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// DayGroup is one display section of a thread.
type DayGroup struct {
	Label    string           `json:"label"`
	Messages []models.Message `json:"messages"`
}

// GroupByDay splits an ascending message sequence into day sections
// labelled "Today", "Yesterday" or a short month/day, in the order the
// days first appear.
func GroupByDay(msgs []models.Message, now time.Time) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int)

	for _, m := range msgs {
		label := DayLabel(m.CreatedAt, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

// DayLabel formats a timestamp for the day separator.
func DayLabel(t, now time.Time) string {
	if sameDay(t, now) {
		return "Today"
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Format("Jan 2")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LatestProposal returns the most recent meetup-flagged message in an
// ascending thread.
func LatestProposal(msgs []models.Message) (models.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsMeetupProposal {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}

// MeetupStatus derives the thread's current meetup status: the status
// of the latest proposal, or empty when the thread has none. Proposing
// again supersedes the previous proposal for display while the log
// keeps both.
func MeetupStatus(msgs []models.Message) string {
	p, ok := LatestProposal(msgs)
	if !ok || p.Meetup == nil {
		return ""
	}
	return p.Meetup.Status
}

// UnreadCount counts the messages a viewer has not seen: those not
// authored by the viewer and created after the viewer's last-read
// point. A zero lastRead counts every incoming message.
func UnreadCount(msgs []models.Message, viewerID string, lastRead time.Time) int {
	n := 0
	for _, m := range msgs {
		if m.SenderID == viewerID {
			continue
		}
		if !lastRead.IsZero() && !m.CreatedAt.After(lastRead) {
			continue
		}
		n++
	}
	return n
}
