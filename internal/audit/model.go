package audit

import "math/big"

// Audit records are append-only and keyed by (tx_hash, log_index), so a
// replayed event can never produce a second row. None of them touch
// subscription lifecycle state.

type Withdrawal struct {
	TxHash         string
	LogIndex       uint32
	Kind           string
	Account        string
	Amount         *big.Int
	BlockNumber    uint64
	BlockTimestamp uint64
}

type OwnershipTransfer struct {
	TxHash         string
	LogIndex       uint32
	PreviousOwner  string
	NewOwner       string
	BlockNumber    uint64
	BlockTimestamp uint64
}

// DayTick records a DayProcessed housekeeping event from the contract.
type DayTick struct {
	TxHash         string
	LogIndex       uint32
	Day            uint64
	BlockNumber    uint64
	BlockTimestamp uint64
}

type UserRegistration struct {
	TxHash         string
	LogIndex       uint32
	User           string
	Action         string // "registered" or "unregistered"
	BlockNumber    uint64
	BlockTimestamp uint64
}
