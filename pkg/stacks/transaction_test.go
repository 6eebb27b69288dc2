package stacks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTransfer(t *testing.T) *UnsignedTransaction {
	t.Helper()
	recipient, err := ParseAddress(burnAddress)
	require.NoError(t, err)
	tx, err := NewUnsignedTransaction(NetworkMainnet, testPublicKey, TokenTransfer{
		Recipient: recipient,
		Amount:    1_000_000,
		Memo:      "test",
	})
	require.NoError(t, err)
	tx.Fee = 200
	tx.Nonce = 7
	return tx
}

func TestPreSignHashIsPure(t *testing.T) {
	tx := buildTransfer(t)

	first, err := tx.PreSignHash()
	require.NoError(t, err)
	second, err := tx.PreSignHash()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPreSignHashCommitsToFeeAndNonce(t *testing.T) {
	tx := buildTransfer(t)
	base, err := tx.PreSignHash()
	require.NoError(t, err)

	tx.Fee = 300
	bumpedFee, err := tx.PreSignHash()
	require.NoError(t, err)
	assert.NotEqual(t, base, bumpedFee)

	tx.Fee = 200
	tx.Nonce = 8
	bumpedNonce, err := tx.PreSignHash()
	require.NoError(t, err)
	assert.NotEqual(t, base, bumpedNonce)
}

func TestSerializeSignedLayout(t *testing.T) {
	tx := buildTransfer(t)
	vrs := "02" + strings.Repeat("a", 64) + strings.Repeat("b", 64)

	raw, err := tx.SerializeSigned(vrs)
	require.NoError(t, err)

	// version, chain id, auth type.
	assert.Equal(t, byte(0x00), raw[0])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, raw[1:5])
	assert.Equal(t, byte(0x04), raw[5])
	// hash mode and signer.
	assert.Equal(t, byte(0x00), raw[6])
	assert.Equal(t, tx.Signer.Hash[:], raw[7:27])
	// nonce and fee, big endian.
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, raw[27:35])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 200}, raw[35:43])
	// key encoding and the recovery byte of the signature.
	assert.Equal(t, byte(0x00), raw[43])
	assert.Equal(t, byte(0x02), raw[44])
}

func TestSerializeSignedRejectsBadSignature(t *testing.T) {
	tx := buildTransfer(t)

	_, err := tx.SerializeSigned("0123")
	assert.Error(t, err)

	_, err = tx.SerializeSigned(strings.Repeat("z", 130))
	assert.Error(t, err)
}

func TestTokenTransferMemoLimit(t *testing.T) {
	recipient, err := ParseAddress(burnAddress)
	require.NoError(t, err)
	tx, err := NewUnsignedTransaction(NetworkTestnet, testPublicKey, TokenTransfer{
		Recipient: recipient,
		Amount:    1,
		Memo:      strings.Repeat("x", 35),
	})
	require.NoError(t, err)

	_, err = tx.BaseSigHash()
	assert.Error(t, err)
}

func TestContractCallSerialization(t *testing.T) {
	deployer, err := ParseAddress(burnAddress)
	require.NoError(t, err)
	tx, err := NewUnsignedTransaction(NetworkTestnet, testPublicKey, ContractCall{
		Contract: ContractPrincipal{Deployer: deployer, Name: "amm-pool"},
		Function: "swap-stx-to-sbtc",
		Args:     []ClarityValue{Uint(42)},
	})
	require.NoError(t, err)
	tx.PostConditionMode = PostConditionModeAllow

	raw, err := tx.SerializeSigned("01" + strings.Repeat("0", 128))
	require.NoError(t, err)

	// testnet version byte and chain id.
	assert.Equal(t, byte(0x80), raw[0])
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x00}, raw[1:5])
	// anchor mode, post-condition mode, empty post-condition list.
	assert.Equal(t, byte(0x03), raw[109])
	assert.Equal(t, byte(0x01), raw[110])
	assert.Equal(t, []byte{0, 0, 0, 0}, raw[111:115])
	// contract-call payload type.
	assert.Equal(t, byte(0x02), raw[115])
}

func TestTxID(t *testing.T) {
	tx := buildTransfer(t)
	raw, err := tx.SerializeSigned("01" + strings.Repeat("0", 128))
	require.NoError(t, err)

	id := TxID(raw)
	assert.Len(t, id, 64)
	assert.Equal(t, id, TxID(raw))
}
