package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintWord(v uint64) []byte {
	return new(big.Int).SetUint64(v).FillBytes(make([]byte, 32))
}

func addrWord(addr string) []byte {
	v, _ := new(big.Int).SetString(addr[2:], 16)
	return v.FillBytes(make([]byte, 32))
}

func words(ws ...[]byte) []byte {
	var out []byte
	for _, w := range ws {
		out = append(out, w...)
	}
	return out
}

func TestKindOfResolvesSignatureTopics(t *testing.T) {
	lg := Log{Topics: []string{Topic(signatures[KindPaymentMade])}}
	kind, ok := KindOf(lg)
	require.True(t, ok)
	assert.Equal(t, KindPaymentMade, kind)

	_, ok = KindOf(Log{Topics: []string{"0xdeadbeef"}})
	assert.False(t, ok)

	_, ok = KindOf(Log{})
	assert.False(t, ok)
}

func TestDecodeSubscriptionOffered(t *testing.T) {
	admin := "0x1111111111111111111111111111111111111111"
	user := "0x2222222222222222222222222222222222222222"

	lg := Log{
		Topics:      []string{Topic(signatures[KindSubscriptionOffered])},
		Data:        words(addrWord(admin), addrWord(user), uintWord(100), uintWord(86400), uintWord(2592000)),
		BlockNumber: 42,
		TxHash:      "0xABCDEF",
		LogIndex:    3,
	}

	ev, err := DecodeSubscriptionOffered(lg)
	require.NoError(t, err)
	assert.Equal(t, admin, ev.Admin)
	assert.Equal(t, user, ev.User)
	assert.Equal(t, big.NewInt(100), ev.Price)
	assert.Equal(t, uint64(86400), ev.PaymentInterval)
	assert.Equal(t, uint64(2592000), ev.Duration)
	assert.Equal(t, uint64(42), ev.BlockNumber)
	assert.Equal(t, "0xabcdef", ev.TxHash)
	assert.Equal(t, uint32(3), ev.LogIndex)
}

func TestDecodePaymentMade(t *testing.T) {
	admin := "0x1111111111111111111111111111111111111111"
	user := "0x2222222222222222222222222222222222222222"

	lg := Log{
		Data: words(addrWord(admin), addrWord(user), uintWord(100), uintWord(173800)),
	}

	ev, err := DecodePaymentMade(lg)
	require.NoError(t, err)
	assert.Equal(t, admin, ev.Admin)
	assert.Equal(t, uint64(173800), ev.NextPaymentTime)
}

func TestDecodeTruncatedDataFails(t *testing.T) {
	lg := Log{
		Data: words(addrWord("0x1111111111111111111111111111111111111111")),
	}
	_, err := DecodePaymentMade(lg)
	assert.Error(t, err)
}

func TestDecodeWithdrawalKinds(t *testing.T) {
	account := "0x1111111111111111111111111111111111111111"
	lg := Log{Data: words(addrWord(account), uintWord(234))}

	for kind, want := range map[Kind]WithdrawalKind{
		KindAdminEthWithdrawal:     WithdrawalAdminEth,
		KindAdminUsdWithdrawal:     WithdrawalAdminUsd,
		KindOwnerEthFeesWithdrawal: WithdrawalOwnerEth,
		KindOwnerUsdFeesWithdrawal: WithdrawalOwnerUsd,
	} {
		ev, err := DecodeWithdrawal(kind, lg)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Kind)
		assert.Equal(t, account, ev.Account)
		assert.Equal(t, big.NewInt(234), ev.Amount)
	}

	_, err := DecodeWithdrawal(KindPaymentMade, lg)
	assert.Error(t, err)
}

func TestDecodeOwnershipTransferredFromTopics(t *testing.T) {
	prev := "0x1111111111111111111111111111111111111111"
	next := "0x2222222222222222222222222222222222222222"

	lg := Log{
		Topics: []string{
			Topic(signatures[KindOwnershipTransferred]),
			"0x000000000000000000000000" + prev[2:],
			"0x000000000000000000000000" + next[2:],
		},
	}

	ev, err := DecodeOwnershipTransferred(lg)
	require.NoError(t, err)
	assert.Equal(t, prev, ev.PreviousOwner)
	assert.Equal(t, next, ev.NewOwner)

	_, err = DecodeOwnershipTransferred(Log{Topics: lg.Topics[:2]})
	assert.Error(t, err)
}

func TestDecodeUserRegistration(t *testing.T) {
	user := "0x2222222222222222222222222222222222222222"
	lg := Log{Data: addrWord(user)}

	reg, err := DecodeUserRegistration(KindUserRegistered, lg)
	require.NoError(t, err)
	assert.True(t, reg.Registered)
	assert.Equal(t, user, reg.User)

	unreg, err := DecodeUserRegistration(KindUserUnregistered, lg)
	require.NoError(t, err)
	assert.False(t, unreg.Registered)
}
