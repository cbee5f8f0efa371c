package chain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Log is a raw contract log as delivered by eth_getLogs / eth_subscribe.
// BlockTimestamp is not part of the RPC payload; the poller fills it in
// before the log reaches the ingestor.
type Log struct {
	Address        string
	Topics         []string
	Data           []byte
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         string
	LogIndex       uint32
	Removed        bool
}

// Provenance ties a decoded event back to the originating log.
type Provenance struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         string
	LogIndex       uint32
}

func (lg Log) provenance() Provenance {
	return Provenance{
		BlockNumber:    lg.BlockNumber,
		BlockTimestamp: lg.BlockTimestamp,
		TxHash:         strings.ToLower(lg.TxHash),
		LogIndex:       lg.LogIndex,
	}
}

// Kind identifies a SubscriptionManager event by its solidity name.
type Kind string

const (
	KindSubscriptionOffered    Kind = "InactiveSubscriptionCreated"
	KindSubscriptionActivated  Kind = "SubscriptionActivated"
	KindPaymentMade            Kind = "PaymentMade"
	KindSubscriptionCancelled  Kind = "SubscriptionCancelled"
	KindAdminEthWithdrawal     Kind = "AdminEthWithdrawalSuccessful"
	KindAdminUsdWithdrawal     Kind = "AdminUsdWithdrawalSuccessful"
	KindOwnerEthFeesWithdrawal Kind = "OwnerEthFeesWithdrawalSuccessful"
	KindOwnerUsdFeesWithdrawal Kind = "OwnerUsdFeesWithdrawalSuccessful"
	KindOwnershipTransferred   Kind = "OwnershipTransferred"
	KindDayProcessed           Kind = "DayProcessed"
	KindUserRegistered         Kind = "UserRegistered"
	KindUserUnregistered       Kind = "UserUnregistered"
)

// signatures holds the canonical event signatures. OwnershipTransferred is
// the OpenZeppelin event and carries its addresses as indexed topics; the
// SubscriptionManager events put all arguments in the data section.
var signatures = map[Kind]string{
	KindSubscriptionOffered:    "InactiveSubscriptionCreated(address,address,uint256,uint256,uint256)",
	KindSubscriptionActivated:  "SubscriptionActivated(address,address,uint256,uint256,uint256,uint256)",
	KindPaymentMade:            "PaymentMade(address,address,uint256,uint256)",
	KindSubscriptionCancelled:  "SubscriptionCancelled(address,address)",
	KindAdminEthWithdrawal:     "AdminEthWithdrawalSuccessful(address,uint256)",
	KindAdminUsdWithdrawal:     "AdminUsdWithdrawalSuccessful(address,uint256)",
	KindOwnerEthFeesWithdrawal: "OwnerEthFeesWithdrawalSuccessful(address,uint256)",
	KindOwnerUsdFeesWithdrawal: "OwnerUsdFeesWithdrawalSuccessful(address,uint256)",
	KindOwnershipTransferred:   "OwnershipTransferred(address,address)",
	KindDayProcessed:           "DayProcessed(uint256)",
	KindUserRegistered:         "UserRegistered(address)",
	KindUserUnregistered:       "UserUnregistered(address)",
}

var (
	topicOnce   sync.Once
	topicToKind map[string]Kind
)

// Topic returns the 0x-prefixed keccak256 hash of an event signature,
// i.e. the value found in topics[0] of a matching log.
func Topic(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + fmt.Sprintf("%x", h.Sum(nil))
}

func topicTable() map[string]Kind {
	topicOnce.Do(func() {
		topicToKind = make(map[string]Kind, len(signatures))
		for kind, sig := range signatures {
			topicToKind[Topic(sig)] = kind
		}
	})
	return topicToKind
}

// KindOf resolves a log's first topic to an event kind. Logs emitted by
// foreign events come back with ok == false.
func KindOf(lg Log) (Kind, bool) {
	if len(lg.Topics) == 0 {
		return "", false
	}
	kind, ok := topicTable()[strings.ToLower(lg.Topics[0])]
	return kind, ok
}

// SubscriptionOffered is the decoded InactiveSubscriptionCreated event.
type SubscriptionOffered struct {
	Admin           string
	User            string
	Price           *big.Int
	PaymentInterval uint64
	Duration        uint64
	Provenance
}

type SubscriptionActivated struct {
	Admin           string
	User            string
	Price           *big.Int
	PaymentInterval uint64
	StartTime       uint64
	EndTime         uint64
	Provenance
}

type PaymentMade struct {
	Admin           string
	User            string
	Price           *big.Int
	NextPaymentTime uint64
	Provenance
}

type SubscriptionCancelled struct {
	Admin string
	User  string
	Provenance
}

// Withdrawal covers the four admin/owner withdrawal events; WithdrawalKind
// distinguishes them in the audit table.
type Withdrawal struct {
	Kind    WithdrawalKind
	Account string
	Amount  *big.Int
	Provenance
}

type WithdrawalKind string

const (
	WithdrawalAdminEth WithdrawalKind = "admin_eth"
	WithdrawalAdminUsd WithdrawalKind = "admin_usd"
	WithdrawalOwnerEth WithdrawalKind = "owner_eth"
	WithdrawalOwnerUsd WithdrawalKind = "owner_usd"
)

type OwnershipTransferred struct {
	PreviousOwner string
	NewOwner      string
	Provenance
}

type DayProcessed struct {
	Day uint64
	Provenance
}

// UserRegistration covers both UserRegistered and UserUnregistered.
type UserRegistration struct {
	User       string
	Registered bool
	Provenance
}

// wordReader walks the 32-byte words of a log's data section.
type wordReader struct {
	data []byte
	off  int
}

func (r *wordReader) word() ([]byte, error) {
	if r.off+32 > len(r.data) {
		return nil, fmt.Errorf("data truncated at word %d (have %d bytes)", r.off/32, len(r.data))
	}
	w := r.data[r.off : r.off+32]
	r.off += 32
	return w, nil
}

func (r *wordReader) address() (string, error) {
	w, err := r.word()
	if err != nil {
		return "", err
	}
	return "0x" + fmt.Sprintf("%x", w[12:]), nil
}

func (r *wordReader) uint256() (*big.Int, error) {
	w, err := r.word()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func (r *wordReader) uint64() (uint64, error) {
	v, err := r.uint256()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

// topicAddress extracts an indexed address argument from topics[i].
func topicAddress(lg Log, i int) (string, error) {
	if i >= len(lg.Topics) {
		return "", fmt.Errorf("missing indexed topic %d (have %d)", i, len(lg.Topics))
	}
	t := strings.TrimPrefix(strings.ToLower(lg.Topics[i]), "0x")
	if len(t) != 64 {
		return "", fmt.Errorf("indexed topic %d has length %d, want 64", i, len(t))
	}
	return "0x" + t[24:], nil
}

func DecodeSubscriptionOffered(lg Log) (SubscriptionOffered, error) {
	r := &wordReader{data: lg.Data}
	ev := SubscriptionOffered{Provenance: lg.provenance()}
	var err error
	if ev.Admin, err = r.address(); err != nil {
		return ev, err
	}
	if ev.User, err = r.address(); err != nil {
		return ev, err
	}
	if ev.Price, err = r.uint256(); err != nil {
		return ev, err
	}
	if ev.PaymentInterval, err = r.uint64(); err != nil {
		return ev, err
	}
	if ev.Duration, err = r.uint64(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeSubscriptionActivated(lg Log) (SubscriptionActivated, error) {
	r := &wordReader{data: lg.Data}
	ev := SubscriptionActivated{Provenance: lg.provenance()}
	var err error
	if ev.Admin, err = r.address(); err != nil {
		return ev, err
	}
	if ev.User, err = r.address(); err != nil {
		return ev, err
	}
	if ev.Price, err = r.uint256(); err != nil {
		return ev, err
	}
	if ev.PaymentInterval, err = r.uint64(); err != nil {
		return ev, err
	}
	if ev.StartTime, err = r.uint64(); err != nil {
		return ev, err
	}
	if ev.EndTime, err = r.uint64(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodePaymentMade(lg Log) (PaymentMade, error) {
	r := &wordReader{data: lg.Data}
	ev := PaymentMade{Provenance: lg.provenance()}
	var err error
	if ev.Admin, err = r.address(); err != nil {
		return ev, err
	}
	if ev.User, err = r.address(); err != nil {
		return ev, err
	}
	if ev.Price, err = r.uint256(); err != nil {
		return ev, err
	}
	if ev.NextPaymentTime, err = r.uint64(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeSubscriptionCancelled(lg Log) (SubscriptionCancelled, error) {
	r := &wordReader{data: lg.Data}
	ev := SubscriptionCancelled{Provenance: lg.provenance()}
	var err error
	if ev.Admin, err = r.address(); err != nil {
		return ev, err
	}
	if ev.User, err = r.address(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeWithdrawal(kind Kind, lg Log) (Withdrawal, error) {
	r := &wordReader{data: lg.Data}
	ev := Withdrawal{Provenance: lg.provenance()}
	switch kind {
	case KindAdminEthWithdrawal:
		ev.Kind = WithdrawalAdminEth
	case KindAdminUsdWithdrawal:
		ev.Kind = WithdrawalAdminUsd
	case KindOwnerEthFeesWithdrawal:
		ev.Kind = WithdrawalOwnerEth
	case KindOwnerUsdFeesWithdrawal:
		ev.Kind = WithdrawalOwnerUsd
	default:
		return ev, fmt.Errorf("%s is not a withdrawal event", kind)
	}
	var err error
	if ev.Account, err = r.address(); err != nil {
		return ev, err
	}
	if ev.Amount, err = r.uint256(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeOwnershipTransferred(lg Log) (OwnershipTransferred, error) {
	// Both arguments are indexed on the OpenZeppelin event.
	ev := OwnershipTransferred{Provenance: lg.provenance()}
	var err error
	if ev.PreviousOwner, err = topicAddress(lg, 1); err != nil {
		return ev, err
	}
	if ev.NewOwner, err = topicAddress(lg, 2); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeDayProcessed(lg Log) (DayProcessed, error) {
	r := &wordReader{data: lg.Data}
	ev := DayProcessed{Provenance: lg.provenance()}
	var err error
	if ev.Day, err = r.uint64(); err != nil {
		return ev, err
	}
	return ev, nil
}

func DecodeUserRegistration(kind Kind, lg Log) (UserRegistration, error) {
	r := &wordReader{data: lg.Data}
	ev := UserRegistration{
		Registered: kind == KindUserRegistered,
		Provenance: lg.provenance(),
	}
	var err error
	if ev.User, err = r.address(); err != nil {
		return ev, err
	}
	return ev, nil
}
