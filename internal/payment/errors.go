package payment

import "errors"

// Adapters log the underlying cause and return one of these.
var (
	ErrProcessingFailed   = errors.New("payment processing failed")
	ErrVerificationFailed = errors.New("verification failed")
	ErrUnknownProvider    = errors.New("unknown payment provider")
	ErrInvalidRequest     = errors.New("invalid payment request")
	ErrInvalidWebhook     = errors.New("invalid webhook signature")
	ErrIgnoredEvent       = errors.New("webhook event ignored")
)
