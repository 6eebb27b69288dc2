package sign

import (
	"fmt"
	"strings"
)

const (
	// componentHexLen is the fixed width of the r and s components in hex.
	componentHexLen = 64
	// recoveryHexLen is the fixed width of the recovery indicator in hex.
	recoveryHexLen = 2
	// vrsHexLen is the length of a fully assembled v||r||s signature in hex.
	vrsHexLen = recoveryHexLen + 2*componentHexLen
)

// Parts holds the raw ECDSA signature components as returned by a remote
// signer. All fields are hex strings, with or without a 0x prefix. V may be
// empty when the signer does not report a recovery indicator.
type Parts struct {
	V string `json:"v,omitempty"`
	R string `json:"r"`
	S string `json:"s"`
}

// HasRecovery reports whether the signer returned a recovery indicator.
func (p Parts) HasRecovery() bool {
	return strings.TrimPrefix(p.V, "0x") != ""
}

// AssembleVRS builds the 130-hex-char v||r||s signature Stacks spending
// conditions expect. Each component is left-zero-padded to its fixed width.
func AssembleVRS(v, r, s string) (string, error) {
	vClean := strings.TrimPrefix(v, "0x")
	rClean := strings.TrimPrefix(r, "0x")
	sClean := strings.TrimPrefix(s, "0x")

	if len(vClean) > recoveryHexLen {
		return "", fmt.Errorf("recovery indicator must be at most %d hex chars, got %d", recoveryHexLen, len(vClean))
	}
	if len(rClean) > componentHexLen || len(sClean) > componentHexLen {
		return "", fmt.Errorf("signature components exceed expected length of %d hex chars", componentHexLen)
	}

	vrs := padLeft(vClean, recoveryHexLen) + padLeft(rClean, componentHexLen) + padLeft(sClean, componentHexLen)
	if len(vrs) != vrsHexLen {
		return "", fmt.Errorf("invalid signature length %d, expected %d", len(vrs), vrsHexLen)
	}
	return vrs, nil
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
