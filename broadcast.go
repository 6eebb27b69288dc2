package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// microStxDecimals is the smallest-unit scale of the chain's native token,
// used when a rejection reports balances without naming an asset.
const microStxDecimals = 6

// BroadcastResult is the classified reply to a transaction submission:
// either an accepted transaction id or a structured rejection. A rejection
// is a value the caller must branch on, never an error.
type BroadcastResult struct {
	TxID      string
	Rejection *BroadcastRejection
}

// Accepted reports whether the network accepted the transaction.
func (r BroadcastResult) Accepted() bool {
	return r.Rejection == nil
}

// BroadcastRejection carries the network's machine-readable rejection.
type BroadcastRejection struct {
	// Code is the machine-readable error code.
	Code string
	// Reason is the optional human-oriented reason ("NotEnoughFunds",
	// "SignatureValidation", "BadNonce", ...).
	Reason string
	// ReasonData holds structured values in smallest units, e.g. actual
	// and expected balances.
	ReasonData map[string]*big.Int
	// TxID is set when the node echoes the would-be transaction id.
	TxID string
}

const (
	rejectionReasonNotEnoughFunds      = "NotEnoughFunds"
	rejectionReasonSignatureValidation = "SignatureValidation"
)

// SignatureMismatch reports whether the rejection indicates an invalid
// signature or failed validation of the spending condition, i.e. the class
// of rejection the recovery trial must skip past.
func (r *BroadcastRejection) SignatureMismatch() bool {
	if r == nil {
		return false
	}
	if r.Reason == rejectionReasonSignatureValidation {
		return true
	}
	lower := strings.ToLower(r.Code + " " + r.Reason)
	return strings.Contains(lower, "signature") || strings.Contains(lower, "auth")
}

// Message renders the rejection for users. Structured balance values are
// converted to the human-readable unit scale rather than shown as raw
// smallest-unit integers.
func (r *BroadcastRejection) Message() string {
	msg := r.Code
	if r.Reason != "" {
		msg += ": " + r.Reason
	}
	if r.Reason == rejectionReasonNotEnoughFunds {
		actual, haveActual := r.ReasonData["actual"]
		expected, haveExpected := r.ReasonData["expected"]
		if haveActual && haveExpected {
			msg += fmt.Sprintf(" (have %s, need %s)",
				formatAmountWithSymbol(actual, microStxDecimals, "STX"),
				formatAmountWithSymbol(expected, microStxDecimals, "STX"))
		}
	}
	if r.TxID != "" {
		msg += fmt.Sprintf(" (txid: %s)", r.TxID)
	}
	return msg
}

// rejectionBody is the node's rejection JSON shape.
type rejectionBody struct {
	Error      string          `json:"error"`
	Reason     string          `json:"reason"`
	ReasonData json.RawMessage `json:"reason_data"`
	TxID       string          `json:"txid"`
}

func parseRejection(body []byte) *BroadcastRejection {
	var raw rejectionBody
	if err := json.Unmarshal(body, &raw); err != nil || raw.Error == "" {
		return &BroadcastRejection{Code: "BroadcastError", Reason: strings.TrimSpace(string(body))}
	}
	return &BroadcastRejection{
		Code:       raw.Error,
		Reason:     raw.Reason,
		ReasonData: parseReasonData(raw.ReasonData),
		TxID:       strings.Trim(raw.TxID, `"`),
	}
}

// parseReasonData keeps only entries that parse as integers; everything else
// in reason_data is advisory.
func parseReasonData(raw json.RawMessage) map[string]*big.Int {
	if len(raw) == 0 {
		return nil
	}
	var entries map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	out := make(map[string]*big.Int)
	for key, value := range entries {
		switch v := value.(type) {
		case string:
			if n, ok := new(big.Int).SetString(v, 10); ok {
				out[key] = n
			}
		case json.Number:
			if n, ok := new(big.Int).SetString(v.String(), 10); ok {
				out[key] = n
			}
		case float64:
			out[key] = new(big.Int).SetInt64(int64(v))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
