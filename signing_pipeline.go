package main

import (
	"context"
	"encoding/hex"

	"github.com/ghost-labs/tradenode/pkg/custody"
	"github.com/ghost-labs/tradenode/pkg/sign"
	"github.com/ghost-labs/tradenode/pkg/stacks"
)

// defaultFeeMicroStx is applied when the caller does not set a fee.
const defaultFeeMicroStx = 200

// TxKind selects the transaction payload shape.
type TxKind string

const (
	TxKindTokenTransfer TxKind = "token-transfer"
	TxKindContractCall  TxKind = "contract-call"
)

// BuildParams are the caller-supplied fields for an unsigned transaction.
// Amounts and fees are smallest-unit integer strings.
type BuildParams struct {
	Kind      TxKind
	PublicKey string

	// Token transfer fields.
	Recipient string
	Amount    string
	Memo      string

	// Contract call fields.
	Contract string
	Function string
	Args     []stacks.ClarityValue

	// AllowPostConditions relaxes the post-condition mode, needed for
	// contract calls that move assets on the caller's behalf.
	AllowPostConditions bool

	Fee   string
	Nonce *uint64
}

// PayloadSigner is the remote signing half of the custody service.
type PayloadSigner interface {
	SignRawPayload(ctx context.Context, req custody.SignRawPayloadRequest) (*custody.SignRawPayloadResult, error)
}

// BroadcastOutcome is the terminal state of one signing-pipeline run: the
// accepted transaction id, or the rejection the caller must branch on.
type BroadcastOutcome struct {
	TxID       string
	RecoveryID string
	Attempts   int
	Rejection  *BroadcastRejection
}

// Accepted reports whether the network took the transaction.
func (o *BroadcastOutcome) Accepted() bool {
	return o != nil && o.Rejection == nil
}

// SigningPipeline drives a transaction from unsigned construction through
// remote signing, recovery-id resolution and broadcast. It performs no
// automatic broadcast retry: submitting a fee-paying action twice is worse
// than surfacing the failure.
type SigningPipeline struct {
	network stacks.Network
	signer  PayloadSigner
	chain   Broadcaster
	// trustRecoveryID selects the direct strategy when the remote signer
	// reports a recovery indicator it actually stands behind.
	trustRecoveryID bool
	metrics         *Metrics
	logger          Logger
}

// NewSigningPipeline wires the pipeline against a remote signer and the
// network broadcaster.
func NewSigningPipeline(network stacks.Network, signer PayloadSigner, chain Broadcaster, trustRecoveryID bool, metrics *Metrics, logger Logger) *SigningPipeline {
	return &SigningPipeline{
		network:         network,
		signer:          signer,
		chain:           chain,
		trustRecoveryID: trustRecoveryID,
		metrics:         metrics,
		logger:          logger.NewSystem("signing-pipeline"),
	}
}

// BuildUnsigned validates the per-kind fields and constructs the unsigned
// transaction. The nonce may stay unset at this stage.
func (p *SigningPipeline) BuildUnsigned(params BuildParams) (*stacks.UnsignedTransaction, error) {
	if params.PublicKey == "" {
		return nil, ValidationErrorf("public key is required")
	}

	var payload stacks.Payload
	switch params.Kind {
	case TxKindTokenTransfer:
		if params.Recipient == "" {
			return nil, ValidationErrorf("recipient is required for a token transfer")
		}
		recipient, err := stacks.ParseAddress(params.Recipient)
		if err != nil {
			return nil, ValidationErrorf("invalid recipient: %v", err)
		}
		amount, err := parseRequiredUint64(params.Amount, "amount")
		if err != nil {
			return nil, err
		}
		payload = stacks.TokenTransfer{Recipient: recipient, Amount: amount, Memo: params.Memo}

	case TxKindContractCall:
		if params.Contract == "" || params.Function == "" {
			return nil, ValidationErrorf("contract and function are required for a contract call")
		}
		contract, err := stacks.ParseContractPrincipal(params.Contract)
		if err != nil {
			return nil, ValidationErrorf("invalid contract: %v", err)
		}
		payload = stacks.ContractCall{Contract: contract, Function: params.Function, Args: params.Args}

	default:
		return nil, ValidationErrorf("unknown transaction kind %q", params.Kind)
	}

	tx, err := stacks.NewUnsignedTransaction(p.network, params.PublicKey, payload)
	if err != nil {
		return nil, ValidationErrorf("%v", err)
	}

	tx.Fee = defaultFeeMicroStx
	if params.Fee != "" {
		fee, err := parseRequiredUint64(params.Fee, "fee")
		if err != nil {
			return nil, err
		}
		tx.Fee = fee
	}
	if params.Nonce != nil {
		tx.Nonce = *params.Nonce
	}
	if params.AllowPostConditions {
		tx.PostConditionMode = stacks.PostConditionModeAllow
	}
	return tx, nil
}

// RequestRemoteSignature sends the final digest to the custody signer. The
// payload is flagged as pre-hashed so the signer must not hash it again.
func (p *SigningPipeline) RequestRemoteSignature(ctx context.Context, digest [32]byte, signWith, orgID string) (sign.Parts, error) {
	result, err := p.signer.SignRawPayload(ctx, custody.SignRawPayloadRequest{
		OrganizationID: orgID,
		SignWith:       signWith,
		Payload:        hex.EncodeToString(digest[:]),
		Encoding:       custody.EncodingHexadecimal,
		HashFunction:   custody.HashFunctionNoOp,
	})
	if err != nil {
		return sign.Parts{}, &SigningError{Err: err}
	}
	return sign.Parts{V: result.V, R: result.R, S: result.S}, nil
}

// SignAndBroadcast computes the pre-sign hash, obtains the remote signature,
// resolves the recovery ambiguity and submits the transaction.
func (p *SigningPipeline) SignAndBroadcast(ctx context.Context, tx *stacks.UnsignedTransaction, signWith, orgID string) (*BroadcastOutcome, error) {
	digest, err := tx.PreSignHash()
	if err != nil {
		return nil, ValidationErrorf("pre-sign hash: %v", err)
	}

	parts, err := p.RequestRemoteSignature(ctx, digest, signWith, orgID)
	if err != nil {
		return nil, err
	}

	if p.trustRecoveryID && parts.HasRecovery() {
		return p.broadcastDirect(ctx, tx, parts)
	}
	return p.broadcastWithRecoveryTrial(ctx, tx, parts)
}

// broadcastDirect assembles the single candidate from the signer-reported
// recovery indicator and submits exactly once.
func (p *SigningPipeline) broadcastDirect(ctx context.Context, tx *stacks.UnsignedTransaction, parts sign.Parts) (*BroadcastOutcome, error) {
	vrs, err := sign.AssembleVRS(parts.V, parts.R, parts.S)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	result, err := p.submit(ctx, tx, vrs)
	if err != nil {
		return nil, err
	}
	outcome := &BroadcastOutcome{
		TxID:       result.TxID,
		RecoveryID: vrs[:2],
		Attempts:   1,
		Rejection:  result.Rejection,
	}
	p.observeOutcome(outcome)
	return outcome, nil
}

// broadcastWithRecoveryTrial walks the four recovery candidates in priority
// order, stopping at the first broadcast that is not rejected for a
// signature mismatch.
func (p *SigningPipeline) broadcastWithRecoveryTrial(ctx context.Context, tx *stacks.UnsignedTransaction, parts sign.Parts) (*BroadcastOutcome, error) {
	resolver, err := sign.NewTrialResolver(parts.R, parts.S)
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	var lastRejection *BroadcastRejection
	for {
		candidate, ok := resolver.Next()
		if !ok {
			break
		}
		if p.metrics != nil {
			p.metrics.RecoveryAttempts.WithLabelValues(candidate.V).Inc()
		}

		result, err := p.submit(ctx, tx, candidate.Signature)
		if err != nil {
			return nil, err
		}
		if result.Accepted() {
			p.logger.Info("recovery candidate accepted", "v", candidate.V, "txid", result.TxID, "attempts", resolver.Attempted())
			outcome := &BroadcastOutcome{
				TxID:       result.TxID,
				RecoveryID: candidate.V,
				Attempts:   resolver.Attempted(),
			}
			p.observeOutcome(outcome)
			return outcome, nil
		}
		if !result.Rejection.SignatureMismatch() {
			// A non-signature rejection would reproduce under every
			// candidate; surface it for the caller to branch on.
			p.logger.Warn("broadcast rejected", "v", candidate.V, "code", result.Rejection.Code, "reason", result.Rejection.Reason)
			outcome := &BroadcastOutcome{
				RecoveryID: candidate.V,
				Attempts:   resolver.Attempted(),
				Rejection:  result.Rejection,
			}
			p.observeOutcome(outcome)
			return outcome, nil
		}

		p.logger.Debug("recovery candidate rejected for signature mismatch", "v", candidate.V)
		lastRejection = result.Rejection
	}

	if p.metrics != nil {
		p.metrics.RecoveryExhausted.Inc()
	}
	return nil, &RecoveryExhaustedError{Attempts: resolver.Attempted(), Last: lastRejection}
}

func (p *SigningPipeline) submit(ctx context.Context, tx *stacks.UnsignedTransaction, vrs string) (BroadcastResult, error) {
	raw, err := tx.SerializeSigned(vrs)
	if err != nil {
		return BroadcastResult{}, &SigningError{Err: err}
	}
	return p.chain.Broadcast(ctx, raw)
}

func (p *SigningPipeline) observeOutcome(outcome *BroadcastOutcome) {
	if p.metrics == nil {
		return
	}
	if outcome.Accepted() {
		p.metrics.BroadcastAttempts.WithLabelValues("accepted").Inc()
	} else {
		p.metrics.BroadcastAttempts.WithLabelValues("rejected").Inc()
	}
}

func parseRequiredUint64(value, field string) (uint64, error) {
	n, err := ParseBaseUnit(value)
	if err != nil {
		return 0, ValidationErrorf("invalid %s: %v", field, err)
	}
	u, err := baseUnitToUint64(n)
	if err != nil {
		return 0, ValidationErrorf("invalid %s: %v", field, err)
	}
	return u, nil
}
