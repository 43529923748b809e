package sms

import (
	"context"
	"testing"
)

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+15550001111": "+1***11",
		"123":          "***",
		"":             "***",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMemoryVerifyGatewayRoundTrip(t *testing.T) {
	g := NewMemoryVerifyGateway()
	ctx := context.Background()

	if err := g.SendVerifyCode(ctx, "+15550001111"); err != nil {
		t.Fatalf("send: %v", err)
	}
	code, ok := g.PeekCode("+15550001111")
	if !ok || len(code) != 6 {
		t.Fatalf("expected a 6-digit pending code, got %q ok=%v", code, ok)
	}

	if err := g.CheckVerifyCode(ctx, "+15550001111", "000000"); err == nil && code != "000000" {
		t.Fatalf("expected wrong code to be rejected")
	}
	if err := g.CheckVerifyCode(ctx, "+15550001111", code); err != nil {
		t.Fatalf("expected matching code to pass: %v", err)
	}
	// Codes are single-use.
	if err := g.CheckVerifyCode(ctx, "+15550001111", code); err == nil {
		t.Fatalf("expected code to be consumed after successful check")
	}
}

func TestCommandSenderRequiresPhone(t *testing.T) {
	s := NewCommandSender("true")
	if err := s.Send(context.Background(), "  ", "hi"); err == nil {
		t.Fatalf("expected empty phone to be rejected")
	}
}
