package domain

import "time"

type Package string

const (
	PackageBasic    Package = "basic"
	PackageAdvanced Package = "advanced"
)

type DeliveryOutcome string

const (
	DeliverySent   DeliveryOutcome = "sent"
	DeliveryFailed DeliveryOutcome = "failed"
)

// QRCode is an owner record behind a sticker's scan URL.
type QRCode struct {
	ID                    string    `json:"id"`
	UniqueCode            string    `json:"uniqueCode"`
	Name                  string    `json:"name"`
	PhoneNumber           string    `json:"phoneNumber"`
	DefaultMessage        string    `json:"defaultMessage"`
	PasswordHash          string    `json:"-"`
	Activated             bool      `json:"activated"`
	Package               Package   `json:"package"`
	PhoneVerified         bool      `json:"phoneVerified"`
	CancellationRequested bool      `json:"cancellationRequested"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// MessageRecord is one pending entry in the SMS relay queue.
// JSON field names match the wire format the relay agent consumes.
type MessageRecord struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	PhoneNumber string    `json:"phone_number"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeliveryStatus records the outcome of one transmission attempt by the
// relay agent. The poller looks for a "sent" row matching (code, message);
// MessageID ties the row to the exact queue entry that was transmitted.
type DeliveryStatus struct {
	ID        string          `json:"id"`
	MessageID string          `json:"message_id"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Status    DeliveryOutcome `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ScanView is the public projection of a QRCode shown on the scan landing
// page. It never carries the password hash.
type ScanView struct {
	UniqueCode     string `json:"uniqueCode"`
	Name           string `json:"name"`
	PhoneNumber    string `json:"phoneNumber"`
	DefaultMessage string `json:"defaultMessage"`
	Activated      bool   `json:"activated"`
}

// Scan returns the public view of a QR code.
func (q QRCode) Scan() ScanView {
	return ScanView{
		UniqueCode:     q.UniqueCode,
		Name:           q.Name,
		PhoneNumber:    q.PhoneNumber,
		DefaultMessage: q.DefaultMessage,
		Activated:      q.Activated,
	}
}
