package stacks

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CompressedPublicKeyLen is the byte length of a compressed secp256k1 key.
const CompressedPublicKeyLen = 33

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const hash160Len = 20

var c32Lookup [256]int8

func init() {
	for i := range c32Lookup {
		c32Lookup[i] = -1
	}
	for i := 0; i < len(c32Alphabet); i++ {
		c32Lookup[c32Alphabet[i]] = int8(i)
	}
	// The c32 alphabet skips I, L, O and U; accept the usual homoglyphs.
	c32Lookup['O'] = 0
	c32Lookup['L'] = 1
	c32Lookup['I'] = 1
}

// Principal identifies a standard Stacks account: a c32check address version
// plus the hash160 of the owning public key.
type Principal struct {
	Version byte
	Hash    [hash160Len]byte
}

// AddressFromPublicKey derives the network's c32check address for a
// compressed secp256k1 public key. A given key maps to exactly one address
// per network selector.
func AddressFromPublicKey(publicKeyHex string, network Network) (string, error) {
	p, err := PrincipalFromPublicKey(publicKeyHex, network)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// PrincipalFromPublicKey derives the signer principal for a compressed
// secp256k1 public key on the given network.
func PrincipalFromPublicKey(publicKeyHex string, network Network) (Principal, error) {
	raw, err := hexutil.Decode(ensureHexPrefix(publicKeyHex))
	if err != nil {
		return Principal{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(raw) != CompressedPublicKeyLen {
		return Principal{}, fmt.Errorf("public key must be %d bytes compressed, got %d", CompressedPublicKeyLen, len(raw))
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return Principal{}, fmt.Errorf("public key is not a valid curve point: %w", err)
	}

	p := Principal{Version: network.AddressVersion()}
	copy(p.Hash[:], btcutil.Hash160(raw))
	return p, nil
}

// String renders the principal as a c32check address ("SP..." / "ST...").
func (p Principal) String() string {
	checksum := c32Checksum(p.Version, p.Hash[:])
	payload := append(append([]byte{}, p.Hash[:]...), checksum...)
	return "S" + string(c32Alphabet[p.Version]) + c32Encode(payload)
}

// ParseAddress decodes and checksum-verifies a c32check address.
func ParseAddress(addr string) (Principal, error) {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	if len(addr) < 5 || addr[0] != 'S' {
		return Principal{}, fmt.Errorf("invalid address %q", addr)
	}

	version := c32Lookup[addr[1]]
	if version < 0 {
		return Principal{}, fmt.Errorf("invalid address version character %q", addr[1])
	}

	payload, err := c32Decode(addr[2:], hash160Len+4)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	var p Principal
	p.Version = byte(version)
	copy(p.Hash[:], payload[:hash160Len])

	expected := c32Checksum(p.Version, p.Hash[:])
	if string(expected) != string(payload[hash160Len:]) {
		return Principal{}, fmt.Errorf("address %q failed checksum", addr)
	}
	return p, nil
}

// ContractPrincipal identifies a deployed contract: its deployer principal
// plus the contract name.
type ContractPrincipal struct {
	Deployer Principal
	Name     string
}

// ParseContractPrincipal parses the "ADDRESS.contract-name" form.
func ParseContractPrincipal(s string) (ContractPrincipal, error) {
	addr, name, ok := strings.Cut(s, ".")
	if !ok || name == "" {
		return ContractPrincipal{}, fmt.Errorf("contract principal %q must have the form ADDRESS.name", s)
	}
	if len(name) > maxClarityNameLen {
		return ContractPrincipal{}, fmt.Errorf("contract name %q exceeds %d characters", name, maxClarityNameLen)
	}
	deployer, err := ParseAddress(addr)
	if err != nil {
		return ContractPrincipal{}, err
	}
	return ContractPrincipal{Deployer: deployer, Name: name}, nil
}

// String renders the "ADDRESS.contract-name" form.
func (c ContractPrincipal) String() string {
	return c.Deployer.String() + "." + c.Name
}

func c32Checksum(version byte, payload []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, payload...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

// c32Encode encodes bytes into the c32 alphabet, preserving one leading '0'
// character per leading zero byte.
func c32Encode(data []byte) string {
	var out []byte
	carry := 0
	carryBits := 0
	for i := len(data) - 1; i >= 0; i-- {
		carry |= int(data[i]) << carryBits
		carryBits += 8
		for carryBits >= 5 {
			out = append(out, c32Alphabet[carry&0x1f])
			carry >>= 5
			carryBits -= 5
		}
	}
	if carryBits > 0 {
		out = append(out, c32Alphabet[carry&0x1f])
	}

	// out was accumulated least-significant character first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	start := 0
	for start < len(out)-1 && out[start] == '0' {
		start++
	}
	out = out[start:]

	leading := 0
	for _, b := range data {
		if b != 0 {
			break
		}
		leading++
	}
	return strings.Repeat("0", leading) + string(out)
}

// c32Decode decodes a c32 string into exactly want bytes.
func c32Decode(s string, want int) ([]byte, error) {
	var out []byte
	carry := 0
	carryBits := 0
	for i := len(s) - 1; i >= 0; i-- {
		v := c32Lookup[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("invalid c32 character %q", s[i])
		}
		carry |= int(v) << carryBits
		carryBits += 5
		for carryBits >= 8 {
			out = append(out, byte(carry&0xff))
			carry >>= 8
			carryBits -= 8
		}
	}
	if carryBits > 0 && carry != 0 {
		out = append(out, byte(carry))
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	// Normalize to the expected fixed width.
	for len(out) > want {
		if out[0] != 0 {
			return nil, fmt.Errorf("decoded payload longer than %d bytes", want)
		}
		out = out[1:]
	}
	for len(out) < want {
		out = append([]byte{0}, out...)
	}
	return out, nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") {
		return s
	}
	return "0x" + s
}
