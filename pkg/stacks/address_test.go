package stacks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The zero-hash mainnet address, as used for burn operations on Stacks.
const burnAddress = "SP000000000000000000002Q6VF78"

const testPublicKey = "02a385a87a6b446f0e9db5a4ab11201d64ba2d1a177c403603b43fa487a71374ca"

func TestParseBurnAddress(t *testing.T) {
	p, err := ParseAddress(burnAddress)
	require.NoError(t, err)
	assert.Equal(t, byte(22), p.Version)
	assert.Equal(t, [20]byte{}, p.Hash)
	assert.Equal(t, burnAddress, p.String())
}

func TestAddressFromPublicKey(t *testing.T) {
	mainnet, err := AddressFromPublicKey(testPublicKey, NetworkMainnet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mainnet, "SP"))

	testnet, err := AddressFromPublicKey(testPublicKey, NetworkTestnet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(testnet, "ST"))

	// Same hash160, different version byte.
	pMain, err := ParseAddress(mainnet)
	require.NoError(t, err)
	pTest, err := ParseAddress(testnet)
	require.NoError(t, err)
	assert.Equal(t, pMain.Hash, pTest.Hash)
	assert.NotEqual(t, pMain.Version, pTest.Version)
}

func TestAddressFromPublicKeyRejectsUncompressed(t *testing.T) {
	_, err := AddressFromPublicKey("04"+strings.Repeat("ab", 64), NetworkMainnet)
	assert.Error(t, err)

	_, err = AddressFromPublicKey("not-hex", NetworkMainnet)
	assert.Error(t, err)

	// Correct length but not a point on the curve.
	_, err = AddressFromPublicKey("02"+strings.Repeat("ff", 32), NetworkMainnet)
	assert.Error(t, err)
}

func TestAddressRoundTrip(t *testing.T) {
	p, err := PrincipalFromPublicKey(testPublicKey, NetworkTestnet)
	require.NoError(t, err)

	parsed, err := ParseAddress(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestParseAddressRejectsCorruption(t *testing.T) {
	p, err := PrincipalFromPublicKey(testPublicKey, NetworkMainnet)
	require.NoError(t, err)
	addr := p.String()

	// Flip one character in the payload.
	corrupted := []byte(addr)
	if corrupted[len(corrupted)-1] == '0' {
		corrupted[len(corrupted)-1] = '1'
	} else {
		corrupted[len(corrupted)-1] = '0'
	}
	_, err = ParseAddress(string(corrupted))
	assert.Error(t, err)

	_, err = ParseAddress("XP000")
	assert.Error(t, err)
}

func TestParseContractPrincipal(t *testing.T) {
	p, err := PrincipalFromPublicKey(testPublicKey, NetworkTestnet)
	require.NoError(t, err)
	addr := p.String()

	contract, err := ParseContractPrincipal(addr + ".amm-pool")
	require.NoError(t, err)
	assert.Equal(t, p, contract.Deployer)
	assert.Equal(t, "amm-pool", contract.Name)
	assert.Equal(t, addr+".amm-pool", contract.String())

	_, err = ParseContractPrincipal(addr)
	assert.Error(t, err)

	_, err = ParseContractPrincipal("bogus.name")
	assert.Error(t, err)
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("mainnet")
	require.NoError(t, err)
	assert.Equal(t, NetworkMainnet, n)

	n, err = ParseNetwork("testnet")
	require.NoError(t, err)
	assert.Equal(t, NetworkTestnet, n)

	_, err = ParseNetwork("devnet")
	assert.Error(t, err)
}
