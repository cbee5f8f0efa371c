package subscription

import (
	"math/big"
	"strings"
)

// SentinelAdmin is the burn address the original contract readers treat as
// a soft-delete marker. Tombstoned rows get it written into their admin
// column so legacy consumers filtering `admin != sentinel` keep working;
// Status is the authoritative field for everything in this repo.
const SentinelAdmin = "0x000000000000000000000000000000000000dead"

type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusTombstoned Status = "tombstoned"
)

// InactiveSubscription is an offer that has not been paid for yet.
type InactiveSubscription struct {
	ID              string
	Admin           string
	User            string
	Price           *big.Int
	PaymentInterval uint64
	Duration        uint64
	Status          Status
	BlockNumber     uint64
	BlockTimestamp  uint64
	TransactionHash string
}

// ActiveSubscription is a paid, running subscription.
type ActiveSubscription struct {
	ID              string
	Admin           string
	User            string
	Price           *big.Int
	PaymentInterval uint64
	StartTime       uint64
	EndTime         uint64
	NextPaymentTime uint64
	Status          Status
	BlockNumber     uint64
	BlockTimestamp  uint64
	TransactionHash string
}

// Key builds the composite identifier for an (admin, user) pair: both
// addresses hex-encoded without the 0x prefix, admin first. The key stays
// stable across the whole subscription lifetime.
func Key(admin, user string) string {
	return stripHex(admin) + stripHex(user)
}

// NormalizeAddress lower-cases an address and guarantees the 0x prefix.
func NormalizeAddress(addr string) string {
	return "0x" + stripHex(addr)
}

func stripHex(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), "0x")
}
