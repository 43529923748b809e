package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"qride/pkg/auth"
	"qride/pkg/domain"
	"qride/pkg/sms"
	"qride/pkg/store"
	"qride/services/codes/internal/token"
)

const (
	defaultVerifyResendWindow = time.Minute
	defaultVerifyMaxAttempts  = 5
	verifyAttemptsWindow      = 10 * time.Minute
)

// INCR and PEXPIRE run as one script; a counter whose expiry never landed
// would lock the code out of verification permanently.
var countAttemptScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Config holds runtime configuration for the codes core.
type Config struct {
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	AdminPasswordHash string

	Tokens *token.Manager
	Verify sms.VerifyGateway

	VerifyResendWindow time.Duration
	VerifyMaxAttempts  int

	// Store overrides the database backend; tests inject a memory store.
	Store store.Store
}

// App is the codes core wiring storage, OTP verification and admin
// sessions.
type App struct {
	store     store.Store
	tokens    *token.Manager
	verify    sms.VerifyGateway
	adminHash string

	redisClient  *redis.Client
	resendWindow time.Duration
	maxAttempts  int
}

// New constructs the codes application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token manager required")
	}
	if strings.TrimSpace(cfg.AdminPasswordHash) == "" {
		return nil, fmt.Errorf("admin password hash required")
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	resendWindow := cfg.VerifyResendWindow
	if resendWindow <= 0 {
		resendWindow = defaultVerifyResendWindow
	}
	maxAttempts := cfg.VerifyMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultVerifyMaxAttempts
	}

	return &App{
		store:        dataStore,
		tokens:       cfg.Tokens,
		verify:       cfg.Verify,
		adminHash:    cfg.AdminPasswordHash,
		redisClient:  redisClient,
		resendWindow: resendWindow,
		maxAttempts:  maxAttempts,
	}, nil
}

// CreateParams are the owner-supplied fields for a new code.
type CreateParams struct {
	Name           string
	PhoneNumber    string
	DefaultMessage string
	Password       string
	Package        domain.Package
}

// CreateCode registers a new QR code. The unique code is generated
// server-side and never chosen by the caller.
func (a *App) CreateCode(p CreateParams) (domain.QRCode, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	if p.Name == "" || p.PhoneNumber == "" {
		return domain.QRCode{}, ErrNameAndPhoneRequired
	}
	pkg := p.Package
	if pkg == "" {
		pkg = domain.PackageBasic
	}

	var passwordHash string
	if p.Password != "" {
		if err := auth.ValidatePassword(p.Password); err != nil {
			return domain.QRCode{}, err
		}
		var err error
		passwordHash, err = auth.HashPassword(p.Password)
		if err != nil {
			return domain.QRCode{}, fmt.Errorf("hash password: %w", err)
		}
	}

	now := time.Now().UTC()
	qr := domain.QRCode{
		ID:             uuid.NewString(),
		UniqueCode:     newUniqueCode(),
		Name:           p.Name,
		PhoneNumber:    p.PhoneNumber,
		DefaultMessage: strings.TrimSpace(p.DefaultMessage),
		PasswordHash:   passwordHash,
		Package:        pkg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveQRCode(qr); err != nil {
		return domain.QRCode{}, fmt.Errorf("save code: %w", err)
	}
	return qr, nil
}

// Scan returns the public view behind a sticker URL.
func (a *App) Scan(uniqueCode string) (domain.ScanView, error) {
	qr, found, err := a.store.GetQRCodeByUniqueCode(strings.TrimSpace(uniqueCode))
	if err != nil {
		return domain.ScanView{}, fmt.Errorf("lookup code: %w", err)
	}
	if !found {
		return domain.ScanView{}, ErrCodeNotFound
	}
	return qr.Scan(), nil
}

// UpdateParams carries owner edits; nil fields are left unchanged.
type UpdateParams struct {
	Name           *string
	PhoneNumber    *string
	DefaultMessage *string
}

// UpdateCode applies owner edits, gated by the code's password when one is
// set. Changing the phone number clears phone verification.
func (a *App) UpdateCode(id, password string, p UpdateParams) (domain.QRCode, error) {
	qr, err := a.getOwned(id, password)
	if err != nil {
		return domain.QRCode{}, err
	}

	if p.Name != nil {
		qr.Name = strings.TrimSpace(*p.Name)
	}
	if p.PhoneNumber != nil {
		phone := strings.TrimSpace(*p.PhoneNumber)
		if phone == "" {
			return domain.QRCode{}, ErrPhoneRequired
		}
		if phone != qr.PhoneNumber {
			qr.PhoneNumber = phone
			qr.PhoneVerified = false
		}
	}
	if p.DefaultMessage != nil {
		qr.DefaultMessage = strings.TrimSpace(*p.DefaultMessage)
	}
	qr.UpdatedAt = time.Now().UTC()

	if err := a.store.SaveQRCode(qr); err != nil {
		return domain.QRCode{}, fmt.Errorf("save code: %w", err)
	}
	return qr, nil
}

// ActivateCode flips the subscription flag. Payment happens elsewhere; this
// is the seam the billing callback lands on.
func (a *App) ActivateCode(uniqueCode string, pkg domain.Package) (domain.QRCode, error) {
	qr, found, err := a.store.GetQRCodeByUniqueCode(strings.TrimSpace(uniqueCode))
	if err != nil {
		return domain.QRCode{}, fmt.Errorf("lookup code: %w", err)
	}
	if !found {
		return domain.QRCode{}, ErrCodeNotFound
	}
	qr.Activated = true
	if pkg != "" {
		qr.Package = pkg
	}
	qr.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveQRCode(qr); err != nil {
		return domain.QRCode{}, fmt.Errorf("save code: %w", err)
	}
	return qr, nil
}

// RequestCancellation marks the subscription for cancellation, gated by the
// owner password.
func (a *App) RequestCancellation(id, password string) (domain.QRCode, error) {
	qr, err := a.getOwned(id, password)
	if err != nil {
		return domain.QRCode{}, err
	}
	qr.CancellationRequested = true
	qr.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveQRCode(qr); err != nil {
		return domain.QRCode{}, fmt.Errorf("save code: %w", err)
	}
	return qr, nil
}

// StartPhoneVerification sends an OTP to the phone number, subject to a
// resend lockout per code.
func (a *App) StartPhoneVerification(ctx context.Context, id, password, phone string) error {
	qr, err := a.getOwned(id, password)
	if err != nil {
		return err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneRequired
	}
	if a.verify == nil {
		return fmt.Errorf("phone verification not configured")
	}

	if err := a.acquireResendSlot(ctx, qr.ID); err != nil {
		return err
	}
	if err := a.verify.SendVerifyCode(ctx, phone); err != nil {
		return err
	}
	return nil
}

// ConfirmPhoneVerification checks the OTP and, on success, stores the
// verified phone number on the code.
func (a *App) ConfirmPhoneVerification(ctx context.Context, id, password, phone, code string) (domain.QRCode, error) {
	qr, err := a.getOwned(id, password)
	if err != nil {
		return domain.QRCode{}, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.QRCode{}, ErrPhoneRequired
	}
	if a.verify == nil {
		return domain.QRCode{}, fmt.Errorf("phone verification not configured")
	}

	if err := a.countConfirmAttempt(ctx, qr.ID); err != nil {
		return domain.QRCode{}, err
	}
	if err := a.verify.CheckVerifyCode(ctx, phone, code); err != nil {
		return domain.QRCode{}, err
	}

	qr.PhoneNumber = phone
	qr.PhoneVerified = true
	qr.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveQRCode(qr); err != nil {
		return domain.QRCode{}, fmt.Errorf("save code: %w", err)
	}
	return qr, nil
}

// AdminLogin checks the password against the configured bcrypt hash and
// returns a session token.
func (a *App) AdminLogin(password string) (string, error) {
	if !auth.CheckPassword(password, a.adminHash) {
		return "", ErrInvalidPassword
	}
	tok, err := a.tokens.Issue()
	if err != nil {
		return "", fmt.Errorf("issue admin token: %w", err)
	}
	return tok, nil
}

// AdminAuthorize validates an admin session token.
func (a *App) AdminAuthorize(tok string) bool {
	return a.tokens.Verify(tok) == nil
}

// AdminListCodes returns every code, newest first.
func (a *App) AdminListCodes() ([]domain.QRCode, error) {
	codes, err := a.store.ListQRCodes()
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

// AdminDeleteCode removes a code by ID.
func (a *App) AdminDeleteCode(id string) error {
	if _, found, err := a.store.GetQRCodeByID(id); err != nil {
		return fmt.Errorf("lookup code: %w", err)
	} else if !found {
		return ErrCodeNotFound
	}
	if err := a.store.DeleteQRCode(id); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

// getOwned loads a code by ID and enforces its password gate.
func (a *App) getOwned(id, password string) (domain.QRCode, error) {
	qr, found, err := a.store.GetQRCodeByID(strings.TrimSpace(id))
	if err != nil {
		return domain.QRCode{}, fmt.Errorf("lookup code: %w", err)
	}
	if !found {
		return domain.QRCode{}, ErrCodeNotFound
	}
	if qr.PasswordHash != "" && !auth.CheckPassword(password, qr.PasswordHash) {
		return domain.QRCode{}, ErrInvalidPassword
	}
	return qr, nil
}

// acquireResendSlot enforces the OTP resend window per code. Without Redis
// the lockout is skipped; single-instance deployments accept that.
func (a *App) acquireResendSlot(ctx context.Context, id string) error {
	if a.redisClient == nil {
		return nil
	}
	key := "qride:codes:verify:resend:" + id
	ok, err := a.redisClient.SetNX(ctx, key, 1, a.resendWindow).Result()
	if err != nil {
		return fmt.Errorf("verify lockout: %w", err)
	}
	if !ok {
		return ErrVerifyResendLocked
	}
	return nil
}

// countConfirmAttempt enforces the confirm attempt cap per code.
func (a *App) countConfirmAttempt(ctx context.Context, id string) error {
	if a.redisClient == nil {
		return nil
	}
	key := "qride:codes:verify:attempts:" + id
	count, err := countAttemptScript.Run(ctx, a.redisClient, []string{key}, verifyAttemptsWindow.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("verify attempts: %w", err)
	}
	if count > int64(a.maxAttempts) {
		return ErrVerifyAttemptsExceeded
	}
	return nil
}

const uniqueCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newUniqueCode returns a short URL-safe sticker code.
func newUniqueCode() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = uniqueCodeAlphabet[int(b[i])%len(uniqueCodeAlphabet)]
	}
	return string(b)
}
