package main

import "fmt"

// ConfigurationError signals missing or unusable service configuration.
// Fatal: retrying without fixing the environment cannot succeed.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Field)
}

// ValidationError signals malformed caller input. Fatal, no retry.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ValidationErrorf builds a ValidationError with a formatted message.
func ValidationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals an absent identity, organization, wallet or account.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ProvisioningError wraps a remote failure during organization, policy or
// wallet creation. The whole provisioning attempt may be retried, but it is
// not idempotent: each retry creates a fresh organization.
type ProvisioningError struct {
	Stage string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// SigningError signals that the remote signer was unreachable or rejected
// the request. The caller may retry the step.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("remote signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// NonceLookupError signals a failed nonce query. The caller may retry after
// a delay; no fallback nonce is ever guessed.
type NonceLookupError struct {
	Address string
	Err     error
}

func (e *NonceLookupError) Error() string {
	return fmt.Sprintf("nonce lookup for %s failed: %v", e.Address, e.Err)
}

func (e *NonceLookupError) Unwrap() error { return e.Err }

// RecoveryExhaustedError signals that every recovery-id candidate was
// rejected by the network. This is a structural problem with the signature
// or the transaction, not a transient fault; it is not retried.
type RecoveryExhaustedError struct {
	Attempts int
	Last     *BroadcastRejection
}

func (e *RecoveryExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("all %d recovery candidates rejected, last: %s", e.Attempts, e.Last.Message())
	}
	return fmt.Sprintf("all %d recovery candidates rejected", e.Attempts)
}
