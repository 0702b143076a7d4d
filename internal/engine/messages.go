package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ikaikahussey/stufff-app/internal/conversation"
	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/notify"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
)

const smsBodyLimit = 100

// SendMessage appends one message to the item's thread: durable write
// first, then exactly one snapshot update from the returned row, then
// the push echo and the best-effort SMS. On a write failure the
// snapshot is untouched.
func (e *Engine) SendMessage(ctx context.Context, itemID, senderID, receiverID, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, fmt.Errorf("%w: message body is required", ErrValidation)
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		ItemID:     itemID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}

	persisted, err := e.record(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	go e.notifySMS(persisted, func(item models.Item) string {
		return fmt.Sprintf("New message about %q: %s", item.Title, truncate(body, smsBodyLimit))
	})
	return persisted, nil
}

// ProposeMeetup appends a meetup proposal message. Date and time are
// required; location is optional. A proposal while another is pending
// appends a new message and supersedes the old one for status display.
func (e *Engine) ProposeMeetup(ctx context.Context, itemID, senderID, receiverID, date, timeOfDay, location string) (models.Message, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(timeOfDay) == "" {
		return models.Message{}, fmt.Errorf("%w: meetup date and time are required", ErrValidation)
	}

	body := fmt.Sprintf("Meetup proposal: %s at %s", date, timeOfDay)
	if location != "" {
		body += " - " + location
	}

	msg := models.Message{
		ID:               uuid.NewString(),
		ItemID:           itemID,
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Body:             body,
		IsMeetupProposal: true,
		Meetup: &models.MeetupDetails{
			Date:     date,
			Time:     timeOfDay,
			Location: location,
			Status:   models.MeetupPending,
		},
	}

	persisted, err := e.record(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	go e.notifySMS(persisted, func(item models.Item) string {
		s := fmt.Sprintf("Meetup request for %q: %s at %s", item.Title, date, timeOfDay)
		if location != "" {
			s += ", Location: " + location
		}
		return s
	})
	return persisted, nil
}

// RespondToMeetup transitions a proposal from pending to confirmed or
// declined. Only the status field of the identified proposal changes;
// the log itself stays append-only. The updated row is republished on
// the item channel so open conversations converge.
func (e *Engine) RespondToMeetup(ctx context.Context, itemID, proposalID, status string) (models.Message, error) {
	if status != models.MeetupConfirmed && status != models.MeetupDeclined {
		return models.Message{}, fmt.Errorf("%w: status must be confirmed or declined", ErrValidation)
	}

	wctx, cancel := e.withTimeout(ctx)
	defer cancel()
	updated, err := e.store.UpdateMeetupStatus(wctx, itemID, proposalID, status)
	if err != nil {
		return models.Message{}, fmt.Errorf("respond to meetup: %w", err)
	}

	e.applyUpdate(updated)
	e.publish(realtime.Event{
		Kind:    realtime.EventMeetupUpdated,
		ItemID:  itemID,
		Message: updated,
	})
	return updated, nil
}

// record runs the shared mutation pipeline for thread appends.
func (e *Engine) record(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := e.ensureThread(ctx, msg.ItemID); err != nil {
		return models.Message{}, err
	}

	wctx, cancel := e.withTimeout(ctx)
	defer cancel()
	persisted, err := e.store.AppendMessage(wctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}

	e.applyInsert(persisted)
	e.publish(realtime.Event{
		Kind:    realtime.EventMessageInserted,
		ItemID:  persisted.ItemID,
		Message: persisted,
	})
	return persisted, nil
}

// ensureThread materializes the thread snapshot from the backend the
// first time an item's conversation is touched. Every loaded id is
// marked seen so a later push of the same row is skipped.
func (e *Engine) ensureThread(ctx context.Context, itemID string) error {
	e.mu.Lock()
	if e.loaded[itemID] {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	rctx, cancel := e.withTimeout(ctx)
	defer cancel()
	msgs, err := e.store.Messages(rctx, itemID)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}
	msgs = conversation.Sort(msgs)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded[itemID] {
		return nil
	}
	set := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		set[m.ID] = struct{}{}
	}
	e.threads[itemID] = msgs
	e.seen[itemID] = set
	e.loaded[itemID] = true
	return nil
}

// applyInsert adds a message to the thread snapshot unless its id has
// been applied before. The id is the correlation key between a
// locally-issued write and its push echo, so the outcome is the same
// whichever arrives first.
func (e *Engine) applyInsert(msg models.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.seen[msg.ItemID]
	if set == nil {
		set = make(map[string]struct{})
		e.seen[msg.ItemID] = set
	}
	if _, dup := set[msg.ID]; dup {
		return false
	}
	set[msg.ID] = struct{}{}

	thread := append(e.threads[msg.ItemID], msg)
	// Pushes may arrive out of order; a stable sort restores created_at
	// order while keeping append order on ties.
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	e.threads[msg.ItemID] = thread
	return true
}

// applyUpdate replaces a thread message in place, keyed by id. Applying
// the same update twice is harmless.
func (e *Engine) applyUpdate(msg models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	thread := e.threads[msg.ItemID]
	for i := range thread {
		if thread[i].ID == msg.ID {
			thread[i] = msg
			return
		}
	}
}

// handlePush reconciles one push-delivered event with the snapshot.
func (e *Engine) handlePush(ev realtime.Event) {
	switch ev.Kind {
	case realtime.EventMeetupUpdated:
		e.applyUpdate(ev.Message)
	default:
		e.applyInsert(ev.Message)
	}
}

func (e *Engine) publish(ev realtime.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.broker.Publish(ctx, ev.ItemID, ev); err != nil {
			log.Printf("[PUSH] publish for item %s failed: %v", ev.ItemID, err)
		}
	}()
}

// Messages returns the item's thread, ascending by creation time.
func (e *Engine) Messages(ctx context.Context, itemID string) ([]models.Message, error) {
	if err := e.ensureThread(ctx, itemID); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Message(nil), e.threads[itemID]...), nil
}

// GroupedMessages returns the thread split into day sections.
func (e *Engine) GroupedMessages(ctx context.Context, itemID string) ([]conversation.DayGroup, error) {
	msgs, err := e.Messages(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return conversation.GroupByDay(msgs, time.Now()), nil
}

// MeetupStatus derives the item's current meetup status from the
// latest proposal, or empty when the thread has none.
func (e *Engine) MeetupStatus(ctx context.Context, itemID string) (string, error) {
	msgs, err := e.Messages(ctx, itemID)
	if err != nil {
		return "", err
	}
	return conversation.MeetupStatus(msgs), nil
}

// UnreadCount counts thread messages the viewer has not read.
func (e *Engine) UnreadCount(ctx context.Context, itemID, viewerID string) (int, error) {
	msgs, err := e.Messages(ctx, itemID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	last := e.lastRead[readKey(itemID, viewerID)]
	e.mu.Unlock()
	return conversation.UnreadCount(msgs, viewerID, last), nil
}

// MarkRead advances the viewer's last-read cursor for the thread. The
// cursor is session state, not durable.
func (e *Engine) MarkRead(itemID, viewerID string) {
	e.mu.Lock()
	e.lastRead[readKey(itemID, viewerID)] = time.Now()
	e.mu.Unlock()
}

func readKey(itemID, viewerID string) string {
	return itemID + "\x00" + viewerID
}

func (e *Engine) notifySMS(msg models.Message, render func(models.Item) string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	item, err := e.GetItem(ctx, msg.ItemID)
	if err != nil {
		log.Printf("[NOTIFY] sms for item %s skipped, item lookup failed: %v", msg.ItemID, err)
		return
	}
	profile, err := e.store.Profile(ctx, msg.ReceiverID)
	if err != nil || profile.Phone == "" {
		log.Printf("[NOTIFY] sms for item %s skipped, no recipient phone", msg.ItemID)
		return
	}

	job := notify.SMS{
		JobID: uuid.NewString(),
		To:    profile.Phone,
		Body:  render(item),
	}
	if err := e.notif.EnqueueSMS(ctx, job); err != nil {
		log.Printf("[NOTIFY] sms for item %s not enqueued: %v", msg.ItemID, err)
	}
}

// truncate caps s at n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
