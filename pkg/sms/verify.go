package sms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dypnsapi "github.com/alibabacloud-go/dypnsapi-20170525/v3/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
)

// Verification errors surfaced to callers.
var (
	ErrVerifyCodeMismatch = errors.New("verification code does not match")
	ErrVerifySendFailed   = errors.New("failed to send verification code")
)

// VerifyGateway sends OTP codes to a phone number and checks them. The
// gateway owns code generation and storage.
type VerifyGateway interface {
	SendVerifyCode(ctx context.Context, phoneNumber string) error
	CheckVerifyCode(ctx context.Context, phoneNumber, code string) error
}

// AlibabaVerifyConfig holds credentials and template settings for the
// Alibaba Cloud phone number verification service.
type AlibabaVerifyConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
	SignName        string
	TemplateCode    string
	CodeLength      int
	ValidSeconds    int
}

// AlibabaVerifyGateway implements VerifyGateway over the dypnsapi SDK.
type AlibabaVerifyGateway struct {
	client       *dypnsapi.Client
	signName     string
	templateCode string
	codeLength   int
	validSeconds int
}

// NewAlibabaVerifyGateway builds the SDK client.
func NewAlibabaVerifyGateway(cfg AlibabaVerifyConfig) (*AlibabaVerifyGateway, error) {
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.AccessKeySecret) == "" {
		return nil, errors.New("alibaba access key id and secret are required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = "dypnsapi.aliyuncs.com"
	}
	codeLength := cfg.CodeLength
	if codeLength <= 0 {
		codeLength = 6
	}
	validSeconds := cfg.ValidSeconds
	if validSeconds <= 0 {
		validSeconds = 300
	}
	client, err := dypnsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("init dypnsapi client: %w", err)
	}
	return &AlibabaVerifyGateway{
		client:       client,
		signName:     cfg.SignName,
		templateCode: cfg.TemplateCode,
		codeLength:   codeLength,
		validSeconds: validSeconds,
	}, nil
}

func (g *AlibabaVerifyGateway) SendVerifyCode(_ context.Context, phoneNumber string) error {
	req := &dypnsapi.SendSmsVerifyCodeRequest{
		PhoneNumber:   tea.String(phoneNumber),
		SignName:      tea.String(g.signName),
		TemplateCode:  tea.String(g.templateCode),
		TemplateParam: tea.String(`{"code":"##code##"}`),
		CodeLength:    tea.Int64(int64(g.codeLength)),
		ValidTime:     tea.Int64(int64(g.validSeconds)),
	}
	resp, err := g.client.SendSmsVerifyCodeWithOptions(req, &util.RuntimeOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifySendFailed, err)
	}
	return checkSendResponse(resp)
}

// checkSendResponse validates the gateway response. The SDK can return a
// nil response or body alongside a nil error, so those come first.
func checkSendResponse(resp *dypnsapi.SendSmsVerifyCodeResponse) error {
	if resp == nil || resp.Body == nil {
		return fmt.Errorf("%w: empty gateway response", ErrVerifySendFailed)
	}
	if gatewayCode := tea.StringValue(resp.Body.Code); gatewayCode != "OK" {
		return fmt.Errorf("%w: gateway code %s", ErrVerifySendFailed, gatewayCode)
	}
	return nil
}

func (g *AlibabaVerifyGateway) CheckVerifyCode(_ context.Context, phoneNumber, code string) error {
	req := &dypnsapi.CheckSmsVerifyCodeRequest{
		PhoneNumber: tea.String(phoneNumber),
		VerifyCode:  tea.String(code),
	}
	resp, err := g.client.CheckSmsVerifyCodeWithOptions(req, &util.RuntimeOptions{})
	if err != nil {
		return fmt.Errorf("check verify code: %w", err)
	}
	if resp == nil || resp.Body == nil || resp.Body.Model == nil {
		return ErrVerifyCodeMismatch
	}
	if tea.StringValue(resp.Body.Model.VerifyResult) != "PASS" {
		return ErrVerifyCodeMismatch
	}
	return nil
}

// MemoryVerifyGateway generates and checks codes in-process. Development
// and test use only; codes are logged nowhere and read via PeekCode.
type MemoryVerifyGateway struct {
	mu    sync.Mutex
	codes map[string]string
}

// NewMemoryVerifyGateway initializes an empty in-memory gateway.
func NewMemoryVerifyGateway() *MemoryVerifyGateway {
	return &MemoryVerifyGateway{codes: make(map[string]string)}
}

func (g *MemoryVerifyGateway) SendVerifyCode(_ context.Context, phoneNumber string) error {
	code, err := generateNumericCode(6)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes[phoneNumber] = code
	return nil
}

func (g *MemoryVerifyGateway) CheckVerifyCode(_ context.Context, phoneNumber, code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	want, ok := g.codes[phoneNumber]
	if !ok || want != strings.TrimSpace(code) {
		return ErrVerifyCodeMismatch
	}
	delete(g.codes, phoneNumber)
	return nil
}

// PeekCode exposes the pending code for a phone number, for tests.
func (g *MemoryVerifyGateway) PeekCode(phoneNumber string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code, ok := g.codes[phoneNumber]
	return code, ok
}

func generateNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
