package engine

import "errors"

// Sentinel errors surfaced to the transport layer, matched with errors.Is.
// Persistence failures surface as store.ErrUnavailable.
var (
	ErrInvalidInput        = errors.New("invalid payload")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrTradeNotFound       = errors.New("trade not found")
)
