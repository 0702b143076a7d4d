package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ikaikahussey/stufff-app/internal/notify"
)

type stubMsg struct {
	data  []byte
	acked bool
}

func (m *stubMsg) Data() []byte { return m.data }
func (m *stubMsg) Ack() error   { m.acked = true; return nil }

type recordingSender struct {
	to, body string
	err      error
}

func (s *recordingSender) Send(ctx context.Context, to, body string) error {
	s.to, s.body = to, body
	return s.err
}

func encodeJob(t *testing.T, job any) []byte {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return data
}

func TestHandleSMSJobDeliversAndAcks(t *testing.T) {
	sender := &recordingSender{}
	msg := &stubMsg{data: encodeJob(t, notify.SMS{JobID: "j1", To: "+18085551234", Body: "hello"})}

	handleSMSJob(context.Background(), sender, msg)

	if sender.to != "+18085551234" || sender.body != "hello" {
		t.Errorf("sent to=%q body=%q", sender.to, sender.body)
	}
	if !msg.acked {
		t.Error("delivered job not acked")
	}
}

func TestHandleSMSJobAcksOnSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("carrier down")}
	msg := &stubMsg{data: encodeJob(t, notify.SMS{JobID: "j1", To: "+18085551234", Body: "hello"})}

	handleSMSJob(context.Background(), sender, msg)

	if !msg.acked {
		t.Error("failed job not acked; it would wedge the queue")
	}
}

func TestHandleSMSJobAcksMalformedPayload(t *testing.T) {
	sender := &recordingSender{}
	msg := &stubMsg{data: []byte("not json")}

	handleSMSJob(context.Background(), sender, msg)

	if sender.to != "" {
		t.Errorf("malformed job reached the sender: to=%q", sender.to)
	}
	if !msg.acked {
		t.Error("malformed job not acked")
	}
}

func TestHandleListingJobAcks(t *testing.T) {
	msg := &stubMsg{data: encodeJob(t, notify.ListingPost{JobID: "j2", ItemID: "42", Title: "Bike", Price: 80})}
	handleListingJob(msg)
	if !msg.acked {
		t.Error("listing job not acked")
	}

	bad := &stubMsg{data: []byte("not json")}
	handleListingJob(bad)
	if !bad.acked {
		t.Error("malformed listing job not acked")
	}
}
