// Package notify is the best-effort notification side channel. Jobs
// are enqueued after a mutation is durably recorded, never before, and
// a failure to enqueue or deliver is logged and forgotten; it never
// reaches the caller and never blocks the mutation path.
package notify

import "context"

// SMS is one outbound text message job.
type SMS struct {
	JobID string `json:"job_id"`
	To    string `json:"to"`
	Body  string `json:"body"`
}

// ListingPost is one outbound social-listing syndication job.
type ListingPost struct {
	JobID  string `json:"job_id"`
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Price  float64 `json:"price"`
}

// Notifier enqueues notification jobs.
type Notifier interface {
	EnqueueSMS(ctx context.Context, job SMS) error
	EnqueueListing(ctx context.Context, job ListingPost) error
}

// Discard drops every job. Used when no NATS URL is configured.
type Discard struct{}

func (Discard) EnqueueSMS(ctx context.Context, job SMS) error          { return nil }
func (Discard) EnqueueListing(ctx context.Context, job ListingPost) error { return nil }

// SMSSender delivers one SMS. Implementations are consumed by the
// notify worker, not by the engine.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}
