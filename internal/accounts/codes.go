package accounts

import (
	"context"
	"errors"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	ReferralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ReferralCodeLength   = 8

	// After this many collisions each further draw is one character longer.
	codeWidenAfter  = 16
	codeMaxAttempts = 64
)

var ErrReferralCodeExhausted = errors.New("could not generate a unique referral code")

// codeTaken reports whether a referral code is already assigned.
type codeTaken func(ctx context.Context, code string) (bool, error)

// generateReferralCode draws uniform [A-Z0-9] codes until one is free, giving
// up after codeMaxAttempts draws.
func generateReferralCode(ctx context.Context, taken codeTaken) (string, error) {
	length := ReferralCodeLength
	for attempt := 1; attempt <= codeMaxAttempts; attempt++ {
		if attempt > codeWidenAfter {
			length = ReferralCodeLength + attempt - codeWidenAfter
		}

		code, err := gonanoid.Generate(ReferralCodeAlphabet, length)
		if err != nil {
			return "", err
		}

		exists, err := taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrReferralCodeExhausted
}
