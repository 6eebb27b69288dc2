package custody

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const stampScheme = "SIGNATURE_SCHEME_TK_API_P256"

// Credentials is an API key pair for the custody service: a compressed P-256
// public key and its private scalar, both hex encoded.
type Credentials struct {
	PublicKeyHex  string
	PrivateKeyHex string
}

// Valid reports whether both halves of the credential are present.
func (c Credentials) Valid() bool {
	return c.PublicKeyHex != "" && c.PrivateKeyHex != ""
}

// Stamper produces the X-Stamp header value authenticating a request body.
type Stamper struct {
	publicKeyHex string
	key          *ecdsa.PrivateKey
}

// NewStamper parses the credential into a signing key. The public key half
// is carried verbatim inside each stamp so the service can find the
// credential record.
func NewStamper(creds Credentials) (*Stamper, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("incomplete API credentials")
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(creds.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("private key out of curve range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())

	return &Stamper{
		publicKeyHex: strings.TrimPrefix(creds.PublicKeyHex, "0x"),
		key:          key,
	}, nil
}

type stampPayload struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// Stamp signs the request body and returns the base64url stamp.
func (s *Stamper) Stamp(body []byte) (string, error) {
	digest := sha256.Sum256(body)
	der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", fmt.Errorf("stamp signing failed: %w", err)
	}

	encoded, err := json.Marshal(stampPayload{
		PublicKey: s.publicKeyHex,
		Scheme:    stampScheme,
		Signature: hex.EncodeToString(der),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(encoded), nil
}

// PublicKeyHex returns the credential's public half without a 0x prefix.
func (s *Stamper) PublicKeyHex() string {
	return s.publicKeyHex
}
