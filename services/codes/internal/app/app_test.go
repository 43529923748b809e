package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"qride/pkg/auth"
	"qride/pkg/domain"
	"qride/pkg/sms"
	"qride/pkg/store"
	"qride/services/codes/internal/token"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T, opts ...func(*Config)) (*App, *sms.MemoryVerifyGateway) {
	t.Helper()
	tokens, err := token.NewManager(testTokenSecret, time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	adminHash, err := auth.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	verify := sms.NewMemoryVerifyGateway()
	cfg := Config{
		Store:             store.NewMemoryStore(),
		Tokens:            tokens,
		Verify:            verify,
		AdminPasswordHash: adminHash,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, verify
}

func TestCreateCodeDefaults(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "My car", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if qr.ID == "" || qr.UniqueCode == "" {
		t.Fatalf("expected generated identifiers, got %+v", qr)
	}
	if qr.Activated {
		t.Fatalf("new code must start deactivated")
	}
	if qr.Package != domain.PackageBasic {
		t.Fatalf("package = %s, want basic default", qr.Package)
	}
	if qr.PasswordHash != "" {
		t.Fatalf("no password supplied, hash must be empty")
	}
}

func TestCreateCodeValidation(t *testing.T) {
	a, _ := newTestApp(t)

	if _, err := a.CreateCode(CreateParams{Name: "x"}); !errors.Is(err, ErrNameAndPhoneRequired) {
		t.Fatalf("err = %v, want ErrNameAndPhoneRequired", err)
	}
	if _, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555", Password: "abc"}); !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestCreateCodeHashesPassword(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555", Password: "hunter22"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if qr.PasswordHash == "" || qr.PasswordHash == "hunter22" {
		t.Fatalf("password must be stored hashed, got %q", qr.PasswordHash)
	}
	if !auth.CheckPassword("hunter22", qr.PasswordHash) {
		t.Fatalf("stored hash does not verify the original password")
	}
}

func TestScanOmitsSecrets(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "My car", PhoneNumber: "+15550001111", Password: "hunter22"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view, err := a.Scan(qr.UniqueCode)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if view.Name != "My car" || view.UniqueCode != qr.UniqueCode {
		t.Fatalf("view = %+v", view)
	}

	if _, err := a.Scan("missing"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v, want ErrCodeNotFound", err)
	}
}

func TestUpdateCodePasswordGate(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555", Password: "hunter22"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Renamed"
	if _, err := a.UpdateCode(qr.ID, "wrong", UpdateParams{Name: &name}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password err = %v, want ErrInvalidPassword", err)
	}
	updated, err := a.UpdateCode(qr.ID, "hunter22", UpdateParams{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
}

func TestUpdateCodePhoneChangeClearsVerification(t *testing.T) {
	a, verify := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); err != nil {
		t.Fatalf("start verification: %v", err)
	}
	code, ok := verify.PeekCode("+1555")
	if !ok {
		t.Fatalf("no pending code")
	}
	verified, err := a.ConfirmPhoneVerification(context.Background(), qr.ID, "", "+1555", code)
	if err != nil {
		t.Fatalf("confirm verification: %v", err)
	}
	if !verified.PhoneVerified {
		t.Fatalf("expected phone_verified after confirm")
	}

	phone := "+1666"
	updated, err := a.UpdateCode(qr.ID, "", UpdateParams{PhoneNumber: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PhoneVerified {
		t.Fatalf("phone change must clear verification")
	}
}

func TestConfirmPhoneVerificationWrongCode(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); err != nil {
		t.Fatalf("start verification: %v", err)
	}
	if _, err := a.ConfirmPhoneVerification(context.Background(), qr.ID, "", "+1555", "000000"); !errors.Is(err, sms.ErrVerifyCodeMismatch) {
		t.Fatalf("err = %v, want ErrVerifyCodeMismatch", err)
	}
}

func TestStartPhoneVerificationResendLockout(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	a, _ := newTestApp(t, func(cfg *Config) {
		cfg.RedisAddr = redisSrv.Addr()
		cfg.VerifyResendWindow = time.Minute
	})

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); !errors.Is(err, ErrVerifyResendLocked) {
		t.Fatalf("second send err = %v, want ErrVerifyResendLocked", err)
	}

	redisSrv.FastForward(2 * time.Minute)
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); err != nil {
		t.Fatalf("send after window: %v", err)
	}
}

func TestConfirmPhoneVerificationAttemptCap(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	a, _ := newTestApp(t, func(cfg *Config) {
		cfg.RedisAddr = redisSrv.Addr()
		cfg.VerifyMaxAttempts = 2
	})

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.StartPhoneVerification(context.Background(), qr.ID, "", "+1555"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := a.ConfirmPhoneVerification(context.Background(), qr.ID, "", "+1555", "000000"); !errors.Is(err, sms.ErrVerifyCodeMismatch) {
			t.Fatalf("attempt %d err = %v", i, err)
		}
	}
	if _, err := a.ConfirmPhoneVerification(context.Background(), qr.ID, "", "+1555", "000000"); !errors.Is(err, ErrVerifyAttemptsExceeded) {
		t.Fatalf("err = %v, want ErrVerifyAttemptsExceeded", err)
	}

	// The counter expires with its window; otherwise one bad streak would
	// lock the code out of verification forever.
	key := "qride:codes:verify:attempts:" + qr.ID
	if ttl := redisSrv.TTL(key); ttl <= 0 {
		t.Fatalf("attempts counter ttl = %v, want a positive expiry", ttl)
	}
	redisSrv.FastForward(verifyAttemptsWindow + time.Second)
	if redisSrv.Exists(key) {
		t.Fatal("attempts counter survived its window")
	}
	if _, err := a.ConfirmPhoneVerification(context.Background(), qr.ID, "", "+1555", "000000"); !errors.Is(err, sms.ErrVerifyCodeMismatch) {
		t.Fatalf("post-window attempt err = %v, want mismatch not lockout", err)
	}
}

func TestActivateAndCancel(t *testing.T) {
	a, _ := newTestApp(t)

	qr, err := a.CreateCode(CreateParams{Name: "x", PhoneNumber: "+1555", Password: "hunter22"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	activated, err := a.ActivateCode(qr.UniqueCode, domain.PackageAdvanced)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !activated.Activated || activated.Package != domain.PackageAdvanced {
		t.Fatalf("activated = %+v", activated)
	}

	if _, err := a.RequestCancellation(qr.ID, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("cancel err = %v, want ErrInvalidPassword", err)
	}
	cancelled, err := a.RequestCancellation(qr.ID, "hunter22")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled.CancellationRequested {
		t.Fatalf("expected cancellation_requested")
	}
}

func TestAdminLogin(t *testing.T) {
	a, _ := newTestApp(t)

	if _, err := a.AdminLogin("wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("err = %v, want ErrInvalidPassword", err)
	}
	tok, err := a.AdminLogin("correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !a.AdminAuthorize(tok) {
		t.Fatalf("issued token failed authorization")
	}
	if a.AdminAuthorize("garbage") {
		t.Fatalf("garbage token authorized")
	}
}

func TestAdminListAndDelete(t *testing.T) {
	a, _ := newTestApp(t)

	first, err := a.CreateCode(CreateParams{Name: "first", PhoneNumber: "+1555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.CreateCode(CreateParams{Name: "second", PhoneNumber: "+1666"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	codes, err := a.AdminListCodes()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("listed %d codes, want 2", len(codes))
	}

	if err := a.AdminDeleteCode(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.AdminDeleteCode(first.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("double delete err = %v, want ErrCodeNotFound", err)
	}
}
