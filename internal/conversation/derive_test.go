package conversation

import (
	"testing"
	"time"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

func msgAt(id string, t time.Time) models.Message {
	return models.Message{ID: id, ItemID: "item-1", SenderID: "u1", CreatedAt: t}
}

func TestSortIsStableOnTies(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msgAt("a", ts),
		msgAt("b", ts),
		msgAt("c", ts.Add(-time.Hour)),
	}

	sorted := Sort(msgs)

	want := []string{"c", "a", "b"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, sorted[i].ID, id)
		}
	}
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"same day", now.Add(-2 * time.Hour), "Today"},
		{"late last night", now.Add(-11 * time.Hour), "Yesterday"},
		{"two days ago", now.AddDate(0, 0, -2), "Jun 13"},
		{"last month", time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC), "May 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayLabel(tt.at, now); got != tt.want {
				t.Errorf("DayLabel(%v) = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}

func TestGroupByDayKeepsFirstAppearanceOrder(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msgAt("old", now.AddDate(0, 0, -3)),
		msgAt("y1", now.AddDate(0, 0, -1)),
		msgAt("y2", now.AddDate(0, 0, -1).Add(time.Hour)),
		msgAt("t1", now.Add(-time.Hour)),
	}

	groups := GroupByDay(msgs, now)

	wantLabels := []string{"Jun 12", "Yesterday", "Today"}
	if len(groups) != len(wantLabels) {
		t.Fatalf("got %d groups, want %d", len(groups), len(wantLabels))
	}
	for i, label := range wantLabels {
		if groups[i].Label != label {
			t.Errorf("group %d: got %q, want %q", i, groups[i].Label, label)
		}
	}
	if len(groups[1].Messages) != 2 {
		t.Errorf("yesterday group has %d messages, want 2", len(groups[1].Messages))
	}
}

func TestGroupByDayEmpty(t *testing.T) {
	if groups := GroupByDay(nil, time.Now()); len(groups) != 0 {
		t.Fatalf("got %d groups for empty thread, want 0", len(groups))
	}
}

func TestMeetupStatusDerivesFromLatestProposal(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	plain := msgAt("m1", base)
	first := msgAt("m2", base.Add(time.Hour))
	first.IsMeetupProposal = true
	first.Meetup = &models.MeetupDetails{Date: "2025-06-05", Time: "14:00", Status: models.MeetupConfirmed}
	second := msgAt("m3", base.Add(2 * time.Hour))
	second.IsMeetupProposal = true
	second.Meetup = &models.MeetupDetails{Date: "2025-06-07", Time: "10:00", Status: models.MeetupPending}

	if got := MeetupStatus([]models.Message{plain}); got != "" {
		t.Errorf("no proposal: got %q, want empty", got)
	}
	if got := MeetupStatus([]models.Message{plain, first}); got != models.MeetupConfirmed {
		t.Errorf("single proposal: got %q, want confirmed", got)
	}
	if got := MeetupStatus([]models.Message{plain, first, second}); got != models.MeetupPending {
		t.Errorf("superseded proposal: got %q, want pending", got)
	}
}

func TestUnreadCount(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mine := models.Message{ID: "a", SenderID: "me", CreatedAt: base}
	theirsOld := models.Message{ID: "b", SenderID: "them", CreatedAt: base.Add(time.Minute)}
	theirsNew := models.Message{ID: "c", SenderID: "them", CreatedAt: base.Add(time.Hour)}
	thread := []models.Message{mine, theirsOld, theirsNew}

	if got := UnreadCount(thread, "me", time.Time{}); got != 2 {
		t.Errorf("zero lastRead: got %d, want 2", got)
	}
	if got := UnreadCount(thread, "me", base.Add(30*time.Minute)); got != 1 {
		t.Errorf("mid lastRead: got %d, want 1", got)
	}
	if got := UnreadCount(thread, "them", time.Time{}); got != 1 {
		t.Errorf("other viewer: got %d, want 1", got)
	}
}

func TestDirection(t *testing.T) {
	msg := models.Message{SenderID: "u1"}
	if got := Direction(msg, "u1"); got != DirectionOutgoing {
		t.Errorf("own message: got %q, want %q", got, DirectionOutgoing)
	}
	if got := Direction(msg, "u2"); got != DirectionIncoming {
		t.Errorf("incoming message: got %q, want %q", got, DirectionIncoming)
	}
}
