package sign

import (
	"fmt"
	"strings"
)

// recoveryTryOrder is the priority order for trial resolution. 01 goes first
// because it is by far the most common valid value for compressed secp256k1
// keys on this scheme, so most flows finish after a single broadcast.
var recoveryTryOrder = [...]string{"01", "00", "02", "03"}

// Candidate is one assembled v||r||s signature awaiting a broadcast attempt.
type Candidate struct {
	V         string
	Signature string
}

// TrialResolver iterates the four recovery-id candidates in broadcast
// priority order. Callers pull candidates with Next, attempt a broadcast for
// each, and stop at the first one the network does not reject for a
// signature mismatch. Exhausted reports the terminal state where every
// candidate has been handed out.
type TrialResolver struct {
	candidates []Candidate
	next       int
}

// NewTrialResolver builds a resolver from the raw r and s components. Any
// recovery indicator the signer reported is ignored; the candidates cover
// all four possible values.
func NewTrialResolver(r, s string) (*TrialResolver, error) {
	rClean := strings.TrimPrefix(r, "0x")
	sClean := strings.TrimPrefix(s, "0x")
	if len(rClean) > componentHexLen || len(sClean) > componentHexLen {
		return nil, fmt.Errorf("signature components exceed expected length of %d hex chars", componentHexLen)
	}

	candidates := make([]Candidate, 0, len(recoveryTryOrder))
	for _, v := range recoveryTryOrder {
		vrs, err := AssembleVRS(v, rClean, sClean)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{V: v, Signature: vrs})
	}
	return &TrialResolver{candidates: candidates}, nil
}

// Next returns the next candidate in priority order. The second return value
// is false once the resolver is exhausted.
func (t *TrialResolver) Next() (Candidate, bool) {
	if t.next >= len(t.candidates) {
		return Candidate{}, false
	}
	c := t.candidates[t.next]
	t.next++
	return c, true
}

// Exhausted reports whether every candidate has been handed out.
func (t *TrialResolver) Exhausted() bool {
	return t.next >= len(t.candidates)
}

// Attempted returns how many candidates have been handed out so far.
func (t *TrialResolver) Attempted() int {
	return t.next
}
