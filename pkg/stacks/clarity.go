package stacks

import (
	"bytes"
	"fmt"
	"math/big"
)

const maxClarityNameLen = 128

const (
	clarityTypeUint              byte = 0x01
	clarityTypeBuffer            byte = 0x02
	clarityTypeStandardPrincipal byte = 0x05
)

var maxClarityUint = new(big.Int).Lsh(big.NewInt(1), 128)

// ClarityValue is a Clarity function argument that knows its wire encoding.
type ClarityValue interface {
	encodeClarity(w *bytes.Buffer) error
}

// UintCV is an unsigned 128-bit Clarity integer.
type UintCV struct {
	Value *big.Int
}

// NewUintCV wraps a non-negative integer as a Clarity uint.
func NewUintCV(v *big.Int) (UintCV, error) {
	if v == nil || v.Sign() < 0 {
		return UintCV{}, fmt.Errorf("clarity uint must be non-negative")
	}
	if v.Cmp(maxClarityUint) >= 0 {
		return UintCV{}, fmt.Errorf("clarity uint overflows 128 bits")
	}
	return UintCV{Value: new(big.Int).Set(v)}, nil
}

// Uint wraps a uint64 as a Clarity uint.
func Uint(v uint64) UintCV {
	return UintCV{Value: new(big.Int).SetUint64(v)}
}

func (u UintCV) encodeClarity(w *bytes.Buffer) error {
	w.WriteByte(clarityTypeUint)
	w.Write(u.Value.FillBytes(make([]byte, 16)))
	return nil
}

// PrincipalCV is a standard principal Clarity value.
type PrincipalCV struct {
	Principal Principal
}

func (p PrincipalCV) encodeClarity(w *bytes.Buffer) error {
	w.WriteByte(clarityTypeStandardPrincipal)
	w.WriteByte(p.Principal.Version)
	w.Write(p.Principal.Hash[:])
	return nil
}

// BufferCV is a fixed byte buffer Clarity value.
type BufferCV struct {
	Data []byte
}

func (b BufferCV) encodeClarity(w *bytes.Buffer) error {
	w.WriteByte(clarityTypeBuffer)
	writeUint32(w, uint32(len(b.Data)))
	w.Write(b.Data)
	return nil
}

// writeClarityName writes a length-prefixed Clarity identifier.
func writeClarityName(w *bytes.Buffer, name string) error {
	if name == "" || len(name) > maxClarityNameLen {
		return fmt.Errorf("clarity name %q must be 1-%d characters", name, maxClarityNameLen)
	}
	w.WriteByte(byte(len(name)))
	w.WriteString(name)
	return nil
}
