// notifyworker drains the notification stream and delivers SMS jobs.
// Delivery is best effort: a failed job is logged and acknowledged so
// it cannot wedge the queue; the core transaction it belongs to has
// long since completed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ikaikahussey/stufff-app/internal/config"
	"github.com/ikaikahussey/stufff-app/internal/notify"
)

func main() {
	fmt.Println("Starting notify worker...")

	cfg := config.Load()
	if cfg.NatsURL == "" {
		fmt.Println("NATS_URL is required")
		os.Exit(1)
	}

	var sender notify.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	} else {
		fmt.Println("No Twilio credentials, logging SMS jobs instead")
		sender = logSender{}
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		fmt.Printf("Failed to connect to NATS: %v\n", err)
		os.Exit(1)
	}
	defer nc.Close()
	fmt.Println("Connected to NATS")

	js, err := jetstream.New(nc)
	if err != nil {
		fmt.Printf("Failed to create JetStream context: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cons, err := js.CreateOrUpdateConsumer(ctx, "NOTIFY_EVENTS", jetstream.ConsumerConfig{
		Durable:       "notify-worker",
		FilterSubject: "notify.sms",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		fmt.Printf("Failed to create consumer: %v\n", err)
		os.Exit(1)
	}

	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		handleSMSJob(ctx, sender, msg)
	})
	if err != nil {
		fmt.Printf("Failed to start consuming: %v\n", err)
		os.Exit(1)
	}
	defer consumeCtx.Stop()

	listingCons, err := js.CreateOrUpdateConsumer(ctx, "NOTIFY_EVENTS", jetstream.ConsumerConfig{
		Durable:       "notify-listing-worker",
		FilterSubject: "notify.listing",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		fmt.Printf("Failed to create listing consumer: %v\n", err)
		os.Exit(1)
	}
	listingCtx, err := listingCons.Consume(func(msg jetstream.Msg) {
		handleListingJob(msg)
	})
	if err != nil {
		fmt.Printf("Failed to start consuming listings: %v\n", err)
		os.Exit(1)
	}
	defer listingCtx.Stop()

	fmt.Println("Consuming notify.sms and notify.listing jobs")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down notify worker...")
}

// queuedMsg is the slice of jetstream.Msg the job handlers need.
type queuedMsg interface {
	Data() []byte
	Ack() error
}

func handleSMSJob(ctx context.Context, sender notify.SMSSender, msg queuedMsg) {
	var job notify.SMS
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		fmt.Printf("Failed to unmarshal SMS job: %v\n", err)
		msg.Ack()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := sender.Send(sendCtx, job.To, job.Body); err != nil {
		fmt.Printf("[NOTIFY] job %s failed: %v\n", job.JobID, err)
	} else {
		fmt.Printf("[NOTIFY] job %s delivered to %s\n", job.JobID, job.To)
	}
	msg.Ack()
}

// handleListingJob drains listing syndication jobs. There is no
// outbound listing target wired up, so the job is logged and
// acknowledged rather than left to age out of the work queue.
func handleListingJob(msg queuedMsg) {
	var job notify.ListingPost
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		fmt.Printf("Failed to unmarshal listing job: %v\n", err)
		msg.Ack()
		return
	}
	fmt.Printf("[NOTIFY] listing %s posted: %q ($%.2f)\n", job.ItemID, job.Title, job.Price)
	msg.Ack()
}

type logSender struct{}

func (logSender) Send(ctx context.Context, to, body string) error {
	fmt.Printf("[NOTIFY] (dry-run) to=%s body=%q\n", to, body)
	return nil
}
