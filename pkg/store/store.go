package store

import (
	"errors"

	"qride/pkg/domain"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for QR codes, the relay message
// queue, and delivery confirmations.
type Store interface {
	// qr codes
	SaveQRCode(domain.QRCode) error
	GetQRCodeByID(id string) (domain.QRCode, bool, error)
	GetQRCodeByUniqueCode(code string) (domain.QRCode, bool, error)
	ListQRCodes() ([]domain.QRCode, error)
	DeleteQRCode(id string) error

	// relay queue rows
	AppendMessage(domain.MessageRecord) error
	ListMessages(codeFilter string) ([]domain.MessageRecord, error)
	DeleteMessages(ids []string) error
	ClearMessages() error

	// delivery confirmations
	AppendDeliveryStatus(domain.DeliveryStatus) error
	ListDeliveryStatus(code, message string) ([]domain.DeliveryStatus, error)
}
