package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName     = "NOTIFY_EVENTS"
	subjectSMS     = "notify.sms"
	subjectListing = "notify.listing"
)

// Dispatcher publishes notification jobs to a JetStream stream. The
// stream hands jobs off to the notify worker with at-least-once
// semantics; delivery to the carrier stays best effort.
type Dispatcher struct {
	js jetstream.JetStream
}

// NewDispatcher creates the stream if it does not exist.
func NewDispatcher(nc *nats.Conn) (*Dispatcher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Outbound notification jobs",
		Subjects:    []string{"notify.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Dispatcher{js: js}, nil
}

// EnqueueSMS publishes one SMS job.
func (d *Dispatcher) EnqueueSMS(ctx context.Context, job SMS) error {
	return d.publish(ctx, subjectSMS, job)
}

// EnqueueListing publishes one listing syndication job.
func (d *Dispatcher) EnqueueListing(ctx context.Context, job ListingPost) error {
	return d.publish(ctx, subjectListing, job)
}

func (d *Dispatcher) publish(ctx context.Context, subject string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	return nil
}
