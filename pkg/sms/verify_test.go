package sms

import (
	"errors"
	"strings"
	"testing"

	dypnsapi "github.com/alibabacloud-go/dypnsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

func TestCheckSendResponse(t *testing.T) {
	if err := checkSendResponse(nil); !errors.Is(err, ErrVerifySendFailed) {
		t.Fatalf("nil response err = %v, want ErrVerifySendFailed", err)
	}
	if err := checkSendResponse(&dypnsapi.SendSmsVerifyCodeResponse{}); !errors.Is(err, ErrVerifySendFailed) {
		t.Fatalf("nil body err = %v, want ErrVerifySendFailed", err)
	}

	rejected := &dypnsapi.SendSmsVerifyCodeResponse{
		Body: &dypnsapi.SendSmsVerifyCodeResponseBody{Code: tea.String("isv.BUSINESS_LIMIT_CONTROL")},
	}
	err := checkSendResponse(rejected)
	if !errors.Is(err, ErrVerifySendFailed) {
		t.Fatalf("rejected err = %v, want ErrVerifySendFailed", err)
	}
	if !strings.Contains(err.Error(), "isv.BUSINESS_LIMIT_CONTROL") {
		t.Fatalf("rejected err %q does not carry the gateway code", err)
	}

	ok := &dypnsapi.SendSmsVerifyCodeResponse{
		Body: &dypnsapi.SendSmsVerifyCodeResponseBody{Code: tea.String("OK")},
	}
	if err := checkSendResponse(ok); err != nil {
		t.Fatalf("ok response err = %v", err)
	}
}
