package stacks

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	authTypeStandard byte = 0x04

	hashModeP2PKH         byte = 0x00
	keyEncodingCompressed byte = 0x00

	anchorModeAny byte = 0x03

	// PostConditionModeAllow lets the transaction move assets without
	// declared post-conditions; PostConditionModeDeny is the strict default.
	PostConditionModeAllow byte = 0x01
	PostConditionModeDeny  byte = 0x02

	payloadTypeTokenTransfer byte = 0x00
	payloadTypeContractCall  byte = 0x02

	principalTypeStandard byte = 0x05

	memoLen         = 34
	signatureHexLen = 130
	signatureLen    = 65
)

// Payload is the type-specific body of a transaction.
type Payload interface {
	encodePayload(w *bytes.Buffer) error
	// Kind names the payload for logs and records.
	Kind() string
}

// TokenTransfer moves micro-STX to a standard principal.
type TokenTransfer struct {
	Recipient Principal
	Amount    uint64
	Memo      string
}

// Kind implements Payload.
func (t TokenTransfer) Kind() string { return "token-transfer" }

func (t TokenTransfer) encodePayload(w *bytes.Buffer) error {
	if len(t.Memo) > memoLen {
		return fmt.Errorf("memo exceeds %d bytes", memoLen)
	}
	w.WriteByte(payloadTypeTokenTransfer)
	w.WriteByte(principalTypeStandard)
	w.WriteByte(t.Recipient.Version)
	w.Write(t.Recipient.Hash[:])
	writeUint64(w, t.Amount)
	memo := make([]byte, memoLen)
	copy(memo, t.Memo)
	w.Write(memo)
	return nil
}

// ContractCall invokes a public function on a deployed contract.
type ContractCall struct {
	Contract ContractPrincipal
	Function string
	Args     []ClarityValue
}

// Kind implements Payload.
func (c ContractCall) Kind() string { return "contract-call" }

func (c ContractCall) encodePayload(w *bytes.Buffer) error {
	w.WriteByte(payloadTypeContractCall)
	w.WriteByte(c.Contract.Deployer.Version)
	w.Write(c.Contract.Deployer.Hash[:])
	if err := writeClarityName(w, c.Contract.Name); err != nil {
		return err
	}
	if err := writeClarityName(w, c.Function); err != nil {
		return err
	}
	writeUint32(w, uint32(len(c.Args)))
	for _, arg := range c.Args {
		if err := arg.encodeClarity(w); err != nil {
			return err
		}
	}
	return nil
}

// UnsignedTransaction is a single-signature transaction awaiting a remote
// signature. It is built per call and never persisted.
type UnsignedTransaction struct {
	Network           Network
	Signer            Principal
	PublicKey         []byte
	Fee               uint64
	Nonce             uint64
	PostConditionMode byte
	Payload           Payload
}

// NewUnsignedTransaction derives the signer principal from the compressed
// public key and assembles an unsigned transaction shell.
func NewUnsignedTransaction(network Network, publicKeyHex string, payload Payload) (*UnsignedTransaction, error) {
	if !network.Valid() {
		return nil, fmt.Errorf("unknown network %q", network)
	}
	signer, err := PrincipalFromPublicKey(publicKeyHex, network)
	if err != nil {
		return nil, err
	}
	raw, _ := hexutil.Decode(ensureHexPrefix(publicKeyHex))
	return &UnsignedTransaction{
		Network:           network,
		Signer:            signer,
		PublicKey:         raw,
		PostConditionMode: PostConditionModeDeny,
		Payload:           payload,
	}, nil
}

// SenderAddress returns the c32check address the transaction spends from.
func (tx *UnsignedTransaction) SenderAddress() string {
	return tx.Signer.String()
}

// serialize writes the full wire form using the supplied spending-condition
// fields. The initial sighash is defined over the transaction with fee,
// nonce and signature all cleared, so those are parameters here.
func (tx *UnsignedTransaction) serialize(fee, nonce uint64, signature [signatureLen]byte) ([]byte, error) {
	var w bytes.Buffer
	w.WriteByte(tx.Network.TransactionVersion())
	writeUint32(&w, tx.Network.ChainID())

	w.WriteByte(authTypeStandard)
	w.WriteByte(hashModeP2PKH)
	w.Write(tx.Signer.Hash[:])
	writeUint64(&w, nonce)
	writeUint64(&w, fee)
	w.WriteByte(keyEncodingCompressed)
	w.Write(signature[:])

	w.WriteByte(anchorModeAny)
	w.WriteByte(tx.PostConditionMode)
	writeUint32(&w, 0) // no post-conditions

	if err := tx.Payload.encodePayload(&w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// BaseSigHash is the digest of the transaction with its spending-condition
// fields cleared.
func (tx *UnsignedTransaction) BaseSigHash() ([32]byte, error) {
	raw, err := tx.serialize(0, 0, [signatureLen]byte{})
	if err != nil {
		return [32]byte{}, err
	}
	return sha512.Sum512_256(raw), nil
}

// PreSignHash is the digest that gets remotely signed. It chains the base
// sighash with the auth type, fee and nonce, so the signature commits to all
// of them. Pure: identical fields always yield an identical digest.
func (tx *UnsignedTransaction) PreSignHash() ([32]byte, error) {
	base, err := tx.BaseSigHash()
	if err != nil {
		return [32]byte{}, err
	}
	var w bytes.Buffer
	w.Write(base[:])
	w.WriteByte(authTypeStandard)
	writeUint64(&w, tx.Fee)
	writeUint64(&w, tx.Nonce)
	return sha512.Sum512_256(w.Bytes()), nil
}

// SerializeSigned attaches a 130-hex-char v||r||s signature and returns the
// broadcastable wire bytes.
func (tx *UnsignedTransaction) SerializeSigned(vrsHex string) ([]byte, error) {
	if len(vrsHex) != signatureHexLen {
		return nil, fmt.Errorf("signature must be %d hex chars, got %d", signatureHexLen, len(vrsHex))
	}
	raw, err := hex.DecodeString(vrsHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	var sig [signatureLen]byte
	copy(sig[:], raw)
	return tx.serialize(tx.Fee, tx.Nonce, sig)
}

// TxID returns the hex transaction id of serialized wire bytes.
func TxID(raw []byte) string {
	sum := sha512.Sum512_256(raw)
	return hex.EncodeToString(sum[:])
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}
