package models

import "time"

// Order tracks one deposit address through its payment lifecycle. TokenKey is
// the caller-facing identifier; Address/SigningKey rotate only on cancel.
// Hashes is the idempotency ledger: payment ids already counted toward the
// order. Previous is the chain pointer for the next block, persisted after
// every accepted block submission.
type Order struct {
	OrderID       string
	TokenKey      string
	Address       string
	SigningKey    string
	Tokens        int64
	TokenAmount   int64
	NanoAmount    float64
	ReceivedRaw   string
	OrderWaiting  bool
	OrderTimeLeft int64
	Processing    bool
	Previous      *string
	Hashes        []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
