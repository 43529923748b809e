package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qride/pkg/domain"
	"qride/services/agent/internal/statuslog"
)

type fakeRelay struct {
	mu       sync.Mutex
	pending  []domain.MessageRecord
	reported []domain.DeliveryStatus
}

func (f *fakeRelay) FetchMessages(ctx context.Context, code string) ([]domain.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MessageRecord(nil), f.pending...), nil
}

func (f *fakeRelay) ReportDelivery(ctx context.Context, messageID, code, message string, outcome domain.DeliveryOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, domain.DeliveryStatus{MessageID: messageID, Code: code, Message: message, Status: outcome})
	// Mirror the relay: a confirmed send retires exactly the reported entry.
	if outcome == domain.DeliverySent {
		kept := f.pending[:0]
		for _, rec := range f.pending {
			if rec.ID == messageID {
				continue
			}
			kept = append(kept, rec)
		}
		f.pending = kept
	}
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	err   error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, phoneNumber, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return f.err
	}
	f.sent = append(f.sent, phoneNumber+":"+message)
	return nil
}

func TestPollOnceSendsAndReports(t *testing.T) {
	relay := &fakeRelay{pending: []domain.MessageRecord{
		{ID: "m1", Code: "abc123", PhoneNumber: "+15550001111", Message: "hello"},
		{ID: "m2", Code: "xyz789", PhoneNumber: "+15550002222", Message: "move your car"},
	}}
	sender := &fakeSender{}
	log, err := statuslog.New(filepath.Join(t.TempDir(), "status.log"))
	if err != nil {
		t.Fatalf("new status log: %v", err)
	}

	w := New(Config{Relay: relay, Sender: sender, StatusLog: log})
	w.pollOnce(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	if len(relay.reported) != 2 {
		t.Fatalf("reported %d outcomes, want 2", len(relay.reported))
	}
	for _, st := range relay.reported {
		if st.Status != domain.DeliverySent {
			t.Fatalf("outcome = %s, want sent", st.Status)
		}
		if st.MessageID == "" {
			t.Fatalf("report missing the queue entry id: %+v", st)
		}
	}
	if len(relay.pending) != 0 {
		t.Fatalf("confirmed sends must retire queue entries, %d left", len(relay.pending))
	}

	entries, err := log.Read()
	if err != nil {
		t.Fatalf("read status log: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != "sent" || entries[0].Phone != "+15550001111" {
		t.Fatalf("status log = %+v", entries)
	}
}

func TestPollOnceReportsFailures(t *testing.T) {
	relay := &fakeRelay{pending: []domain.MessageRecord{
		{ID: "m1", Code: "abc123", PhoneNumber: "+15550001111", Message: "hello"},
	}}
	sender := &fakeSender{fail: true, err: errors.New("modem busy")}

	w := New(Config{Relay: relay, Sender: sender})
	w.pollOnce(context.Background())

	if len(relay.reported) != 1 || relay.reported[0].Status != domain.DeliveryFailed {
		t.Fatalf("reported = %+v, want one failed outcome", relay.reported)
	}
	if len(relay.pending) != 1 {
		t.Fatalf("failed sends must stay queued for the next poll")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	relay := &fakeRelay{}
	sender := &fakeSender{}
	w := New(Config{Relay: relay, Sender: sender, Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
