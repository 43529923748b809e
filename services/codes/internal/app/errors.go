package app

import "errors"

var (
	ErrCodeNotFound = errors.New("QR code not found")

	ErrNameAndPhoneRequired = errors.New("name and phone_number required")
	ErrPhoneRequired        = errors.New("phone_number required")

	// ErrInvalidPassword covers both the owner password gate and a bad
	// admin password; the message enables no enumeration either way.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrVerifyResendLocked is returned while a previously sent code is
	// still fresh.
	ErrVerifyResendLocked = errors.New("verification code already sent, retry later")

	// ErrVerifyAttemptsExceeded is returned once the confirm attempt cap
	// for a phone number is reached.
	ErrVerifyAttemptsExceeded = errors.New("too many verification attempts, retry later")
)
