package custody

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials(t *testing.T) (Credentials, *ecdsa.PublicKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := elliptic.MarshalCompressed(elliptic.P256(), key.X, key.Y)
	return Credentials{
		PublicKeyHex:  hex.EncodeToString(pub),
		PrivateKeyHex: hex.EncodeToString(key.D.Bytes()),
	}, &key.PublicKey
}

func TestStampVerifies(t *testing.T) {
	creds, pub := testCredentials(t)
	stamper, err := NewStamper(creds)
	require.NoError(t, err)

	body := []byte(`{"organizationId":"org-1"}`)
	stamp, err := stamper.Stamp(body)
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(stamp)
	require.NoError(t, err)

	var payload struct {
		PublicKey string `json:"publicKey"`
		Scheme    string `json:"scheme"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(decoded, &payload))
	assert.Equal(t, creds.PublicKeyHex, payload.PublicKey)
	assert.Equal(t, "SIGNATURE_SCHEME_TK_API_P256", payload.Scheme)

	der, err := hex.DecodeString(payload.Signature)
	require.NoError(t, err)
	digest := sha256.Sum256(body)
	assert.True(t, ecdsa.VerifyASN1(pub, digest[:], der))
}

func TestStampsDifferPerBody(t *testing.T) {
	creds, _ := testCredentials(t)
	stamper, err := NewStamper(creds)
	require.NoError(t, err)

	first, err := stamper.Stamp([]byte("a"))
	require.NoError(t, err)
	second, err := stamper.Stamp([]byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestNewStamperRejectsBadKeys(t *testing.T) {
	_, err := NewStamper(Credentials{})
	assert.Error(t, err)

	_, err = NewStamper(Credentials{PublicKeyHex: "02ab", PrivateKeyHex: "not-hex"})
	assert.Error(t, err)

	// Zero scalar is outside the valid range.
	_, err = NewStamper(Credentials{PublicKeyHex: "02ab", PrivateKeyHex: "00"})
	assert.Error(t, err)
}

func TestStamperStripsHexPrefix(t *testing.T) {
	creds, _ := testCredentials(t)
	creds.PublicKeyHex = "0x" + creds.PublicKeyHex
	creds.PrivateKeyHex = "0x" + creds.PrivateKeyHex

	stamper, err := NewStamper(creds)
	require.NoError(t, err)
	assert.NotContains(t, stamper.PublicKeyHex(), "0x")
}
