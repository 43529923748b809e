package store

import (
	"testing"
	"time"

	"qride/pkg/domain"
)

func TestMemoryStoreQRCodeLookupByUniqueCode(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	code := domain.QRCode{
		ID:          "id-1",
		UniqueCode:  "abc123",
		Name:        "White Sedan",
		PhoneNumber: "+15550001111",
		Package:     domain.PackageBasic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.SaveQRCode(code); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.GetQRCodeByUniqueCode("abc123")
	if err != nil || !ok {
		t.Fatalf("lookup by unique code: ok=%v err=%v", ok, err)
	}
	if got.PhoneNumber != "+15550001111" {
		t.Fatalf("unexpected phone: %s", got.PhoneNumber)
	}

	if _, ok, _ := s.GetQRCodeByUniqueCode("missing"); ok {
		t.Fatalf("expected miss for unknown unique code")
	}

	if err := s.DeleteQRCode("id-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetQRCodeByUniqueCode("abc123"); ok {
		t.Fatalf("expected unique code index cleared after delete")
	}
}

func TestMemoryStoreMessagesKeepInsertionOrderAndDuplicates(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		rec := domain.MessageRecord{
			ID:          id,
			Code:        "abc123",
			PhoneNumber: "+15550001111",
			Message:     "Please move your car",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendMessage(rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	msgs, err := s.ListMessages("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 queued messages (duplicates kept), got %d", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Fatalf("order broken at %d: got %s want %s", i, msgs[i].ID, want)
		}
	}

	if err := s.DeleteMessages([]string{"m2"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, _ = s.ListMessages("")
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m3" {
		t.Fatalf("unexpected messages after delete: %+v", msgs)
	}

	if err := s.ClearMessages(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, _ = s.ListMessages("")
	if len(msgs) != 0 {
		t.Fatalf("expected empty queue after clear, got %d", len(msgs))
	}
}

func TestMemoryStoreMessagesFilterByCode(t *testing.T) {
	s := NewMemoryStore()
	_ = s.AppendMessage(domain.MessageRecord{ID: "a", Code: "one", Message: "x"})
	_ = s.AppendMessage(domain.MessageRecord{ID: "b", Code: "two", Message: "y"})

	msgs, err := s.ListMessages("two")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "b" {
		t.Fatalf("unexpected filter result: %+v", msgs)
	}
}

func TestMemoryStoreDeliveryStatusMatchesExactPair(t *testing.T) {
	s := NewMemoryStore()
	_ = s.AppendDeliveryStatus(domain.DeliveryStatus{
		ID: "d1", Code: "abc", Message: "Please move your car", Status: domain.DeliverySent,
	})
	_ = s.AppendDeliveryStatus(domain.DeliveryStatus{
		ID: "d2", Code: "abc", Message: "Other text", Status: domain.DeliverySent,
	})

	rows, err := s.ListDeliveryStatus("abc", "Please move your car")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "d1" {
		t.Fatalf("expected exact (code, message) match, got %+v", rows)
	}
}
