package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"qride/pkg/domain"
)

const migrateLockID int64 = 91740273

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&QRCodeModel{}, &MessageModel{}, &DeliveryStatusModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveQRCode creates or updates a QR code record.
func (s *GormStore) SaveQRCode(q domain.QRCode) error {
	model := qrCodeToModel(q)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "phone_number", "default_message", "password_hash",
			"activated", "package", "phone_verified", "cancellation_requested",
			"updated_at",
		}),
	}).Create(&model).Error
}

// GetQRCodeByID returns a QR code by record ID.
func (s *GormStore) GetQRCodeByID(id string) (domain.QRCode, bool, error) {
	var model QRCodeModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.QRCode{}, false, nil
		}
		return domain.QRCode{}, false, err
	}
	return qrCodeFromModel(model), true, nil
}

// GetQRCodeByUniqueCode returns a QR code by its public scan token.
func (s *GormStore) GetQRCodeByUniqueCode(code string) (domain.QRCode, bool, error) {
	var model QRCodeModel
	if err := s.db.First(&model, "unique_code = ?", code).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.QRCode{}, false, nil
		}
		return domain.QRCode{}, false, err
	}
	return qrCodeFromModel(model), true, nil
}

// ListQRCodes returns all QR codes, newest first (admin view order).
func (s *GormStore) ListQRCodes() ([]domain.QRCode, error) {
	var models []QRCodeModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.QRCode, 0, len(models))
	for _, m := range models {
		res = append(res, qrCodeFromModel(m))
	}
	return res, nil
}

// DeleteQRCode removes a QR code record.
func (s *GormStore) DeleteQRCode(id string) error {
	return s.db.Delete(&QRCodeModel{}, "id = ?", id).Error
}

// AppendMessage inserts one relay queue row.
func (s *GormStore) AppendMessage(r domain.MessageRecord) error {
	model := messageToModel(r)
	return s.db.Create(&model).Error
}

// ListMessages returns queued messages oldest first, optionally filtered
// by code.
func (s *GormStore) ListMessages(codeFilter string) ([]domain.MessageRecord, error) {
	var models []MessageModel
	tx := s.db.Order("created_at ASC")
	if codeFilter != "" {
		tx = tx.Where("code = ?", codeFilter)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.MessageRecord, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// DeleteMessages removes the given queue rows by ID.
func (s *GormStore) DeleteMessages(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Delete(&MessageModel{}, "id IN ?", ids).Error
}

// ClearMessages empties the relay queue.
func (s *GormStore) ClearMessages() error {
	return s.db.Where("1 = 1").Delete(&MessageModel{}).Error
}

// AppendDeliveryStatus records one transmission outcome.
func (s *GormStore) AppendDeliveryStatus(d domain.DeliveryStatus) error {
	model := deliveryToModel(d)
	return s.db.Create(&model).Error
}

// ListDeliveryStatus returns outcomes matching (code, message), oldest first.
func (s *GormStore) ListDeliveryStatus(code, message string) ([]domain.DeliveryStatus, error) {
	var models []DeliveryStatusModel
	if err := s.db.Where("code = ? AND message = ?", code, message).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DeliveryStatus, 0, len(models))
	for _, m := range models {
		res = append(res, deliveryFromModel(m))
	}
	return res, nil
}
