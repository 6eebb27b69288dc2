package main

import (
	"context"
	"sync"
	"time"
)

// defaultQuiescence is how long the sequencer waits after a broadcast before
// the next nonce query, giving the network's nonce-tracking view time to
// catch up.
const defaultQuiescence = 3 * time.Second

// NonceSequencer fetches a fresh network nonce immediately before each
// transaction is built and enforces an inter-step quiescence delay after
// every broadcast. The delay is a heuristic, not a guarantee: concurrent
// invocations for the same account can still race.
type NonceSequencer struct {
	source     NonceSource
	quiescence time.Duration
	logger     Logger

	mu            sync.Mutex
	lastBroadcast time.Time
}

// NewNonceSequencer builds a sequencer over the given nonce source. A
// non-positive quiescence falls back to the default.
func NewNonceSequencer(source NonceSource, quiescence time.Duration, logger Logger) *NonceSequencer {
	if quiescence <= 0 {
		quiescence = defaultQuiescence
	}
	return &NonceSequencer{
		source:     source,
		quiescence: quiescence,
		logger:     logger.NewSystem("nonce-sequencer"),
	}
}

// BeforeStep waits out any remaining quiescence window and then queries the
// network's next usable nonce for the account. No fallback nonce is guessed
// on failure.
func (s *NonceSequencer) BeforeStep(ctx context.Context, address string) (uint64, error) {
	if err := s.waitQuiescence(ctx); err != nil {
		return 0, err
	}

	nonce, err := s.source.NextNonce(ctx, address)
	if err != nil {
		if _, ok := err.(*NonceLookupError); ok {
			return 0, err
		}
		return 0, &NonceLookupError{Address: address, Err: err}
	}
	s.logger.Debug("fetched nonce", "address", address, "nonce", nonce)
	return nonce, nil
}

// NoteBroadcast records the moment a transaction was submitted, starting the
// quiescence window for the next step.
func (s *NonceSequencer) NoteBroadcast() {
	s.mu.Lock()
	s.lastBroadcast = time.Now()
	s.mu.Unlock()
}

func (s *NonceSequencer) waitQuiescence(ctx context.Context) error {
	s.mu.Lock()
	last := s.lastBroadcast
	s.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	remaining := s.quiescence - time.Since(last)
	if remaining <= 0 {
		return nil
	}

	s.logger.Debug("waiting for nonce quiescence", "remaining", remaining)
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
