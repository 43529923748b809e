package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Sender transmits one SMS to a phone number.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// NoopSender logs instead of sending. Used in development and tests.
type NoopSender struct{}

func (NoopSender) Send(_ context.Context, phoneNumber, _ string) error {
	slog.Info("sms send skipped (noop sender)", "phone", MaskPhone(phoneNumber))
	return nil
}

// CommandSender shells out to an on-device SMS CLI such as termux-sms-send,
// matching the Android relay deployment.
type CommandSender struct {
	command string
}

// NewCommandSender validates the command name. Empty defaults to
// termux-sms-send.
func NewCommandSender(command string) *CommandSender {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "termux-sms-send"
	}
	return &CommandSender{command: command}
}

func (s *CommandSender) Send(ctx context.Context, phoneNumber, message string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return errors.New("phone number required")
	}
	cmd := exec.CommandContext(ctx, s.command, "-n", phoneNumber, message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", s.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// MaskPhone hides the middle digits of a phone number for log output.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "***"
	}
	return phone[:2] + "***" + phone[len(phone)-2:]
}
