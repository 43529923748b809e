package store

import (
	"time"

	"qride/pkg/domain"
)

// GORM models used for persistence. Table names follow the deployed schema
// (qr_codes, messages, delivery_status).
type QRCodeModel struct {
	ID                    string `gorm:"primaryKey"`
	UniqueCode            string `gorm:"uniqueIndex;not null;column:unique_code"`
	Name                  string `gorm:"not null"`
	PhoneNumber           string `gorm:"not null"`
	DefaultMessage        string
	PasswordHash          string
	Activated             bool      `gorm:"not null;default:false"`
	Package               string    `gorm:"not null"`
	PhoneVerified         bool      `gorm:"not null;default:false"`
	CancellationRequested bool      `gorm:"not null;default:false"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

func (QRCodeModel) TableName() string { return "qr_codes" }

type MessageModel struct {
	ID          string    `gorm:"primaryKey"`
	Code        string    `gorm:"not null;index"`
	PhoneNumber string    `gorm:"not null"`
	Message     string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }

type DeliveryStatusModel struct {
	ID        string    `gorm:"primaryKey"`
	MessageID string    `gorm:"not null;index"`
	Code      string    `gorm:"not null;index:idx_delivery_code_message"`
	Message   string    `gorm:"not null;index:idx_delivery_code_message"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (DeliveryStatusModel) TableName() string { return "delivery_status" }

func qrCodeToModel(q domain.QRCode) QRCodeModel {
	return QRCodeModel{
		ID:                    q.ID,
		UniqueCode:            q.UniqueCode,
		Name:                  q.Name,
		PhoneNumber:           q.PhoneNumber,
		DefaultMessage:        q.DefaultMessage,
		PasswordHash:          q.PasswordHash,
		Activated:             q.Activated,
		Package:               string(q.Package),
		PhoneVerified:         q.PhoneVerified,
		CancellationRequested: q.CancellationRequested,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
}

func qrCodeFromModel(m QRCodeModel) domain.QRCode {
	return domain.QRCode{
		ID:                    m.ID,
		UniqueCode:            m.UniqueCode,
		Name:                  m.Name,
		PhoneNumber:           m.PhoneNumber,
		DefaultMessage:        m.DefaultMessage,
		PasswordHash:          m.PasswordHash,
		Activated:             m.Activated,
		Package:               domain.Package(m.Package),
		PhoneVerified:         m.PhoneVerified,
		CancellationRequested: m.CancellationRequested,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func messageToModel(r domain.MessageRecord) MessageModel {
	return MessageModel{
		ID:          r.ID,
		Code:        r.Code,
		PhoneNumber: r.PhoneNumber,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.MessageRecord {
	return domain.MessageRecord{
		ID:          m.ID,
		Code:        m.Code,
		PhoneNumber: m.PhoneNumber,
		Message:     m.Message,
		CreatedAt:   m.CreatedAt,
	}
}

func deliveryToModel(d domain.DeliveryStatus) DeliveryStatusModel {
	return DeliveryStatusModel{
		ID:        d.ID,
		MessageID: d.MessageID,
		Code:      d.Code,
		Message:   d.Message,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt,
	}
}

func deliveryFromModel(m DeliveryStatusModel) domain.DeliveryStatus {
	return domain.DeliveryStatus{
		ID:        m.ID,
		MessageID: m.MessageID,
		Code:      m.Code,
		Message:   m.Message,
		Status:    domain.DeliveryOutcome(m.Status),
		CreatedAt: m.CreatedAt,
	}
}
