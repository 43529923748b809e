package store

import (
	"sync"

	"qride/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and the
// single-binary dev setup.
type MemoryStore struct {
	mu         sync.RWMutex
	codes      map[string]domain.QRCode // key: record ID
	byCode     map[string]string        // unique_code -> record ID
	codeOrder  []string
	messages   []domain.MessageRecord
	deliveries []domain.DeliveryStatus
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:  make(map[string]domain.QRCode),
		byCode: make(map[string]string),
	}
}

// SaveQRCode stores or replaces a QR code and tracks insertion order.
func (m *MemoryStore) SaveQRCode(q domain.QRCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.codes[q.ID]; !exists {
		m.codeOrder = append(m.codeOrder, q.ID)
	}
	m.codes[q.ID] = q
	m.byCode[q.UniqueCode] = q.ID
	return nil
}

// GetQRCodeByID returns a QR code by record ID.
func (m *MemoryStore) GetQRCodeByID(id string) (domain.QRCode, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.codes[id]
	return q, ok, nil
}

// GetQRCodeByUniqueCode returns a QR code by its public scan token.
func (m *MemoryStore) GetQRCodeByUniqueCode(code string) (domain.QRCode, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return domain.QRCode{}, false, nil
	}
	q, ok := m.codes[id]
	return q, ok, nil
}

// ListQRCodes returns QR codes newest first.
func (m *MemoryStore) ListQRCodes() ([]domain.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.QRCode, 0, len(m.codeOrder))
	for i := len(m.codeOrder) - 1; i >= 0; i-- {
		if q, ok := m.codes[m.codeOrder[i]]; ok {
			res = append(res, q)
		}
	}
	return res, nil
}

// DeleteQRCode removes a QR code record.
func (m *MemoryStore) DeleteQRCode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.codes[id]; ok {
		delete(m.byCode, q.UniqueCode)
	}
	delete(m.codes, id)
	filtered := m.codeOrder[:0]
	for _, item := range m.codeOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.codeOrder = filtered
	return nil
}

// AppendMessage adds one relay queue entry.
func (m *MemoryStore) AppendMessage(r domain.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, r)
	return nil
}

// ListMessages returns queued messages in insertion order.
func (m *MemoryStore) ListMessages(codeFilter string) ([]domain.MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.MessageRecord, 0, len(m.messages))
	for _, r := range m.messages {
		if codeFilter != "" && r.Code != codeFilter {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

// DeleteMessages removes queue entries by ID.
func (m *MemoryStore) DeleteMessages(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	for _, r := range m.messages {
		if _, gone := drop[r.ID]; !gone {
			kept = append(kept, r)
		}
	}
	m.messages = kept
	return nil
}

// ClearMessages empties the relay queue.
func (m *MemoryStore) ClearMessages() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	return nil
}

// AppendDeliveryStatus records one transmission outcome.
func (m *MemoryStore) AppendDeliveryStatus(d domain.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

// ListDeliveryStatus returns outcomes matching (code, message).
func (m *MemoryStore) ListDeliveryStatus(code, message string) ([]domain.DeliveryStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.DeliveryStatus, 0)
	for _, d := range m.deliveries {
		if d.Code == code && d.Message == message {
			res = append(res, d)
		}
	}
	return res, nil
}
