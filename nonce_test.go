package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNonceSource struct {
	nonce uint64
	err   error
	calls int
}

func (f *fakeNonceSource) NextNonce(ctx context.Context, address string) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.nonce, nil
}

func TestBeforeStepFetchesFreshNonce(t *testing.T) {
	source := &fakeNonceSource{nonce: 12}
	sequencer := NewNonceSequencer(source, time.Millisecond, NewLoggerIPFS("test"))

	nonce, err := sequencer.BeforeStep(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), nonce)
	assert.Equal(t, 1, source.calls)

	// Every step queries the network again.
	source.nonce = 13
	nonce, err = sequencer.BeforeStep(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.Equal(t, uint64(13), nonce)
	assert.Equal(t, 2, source.calls)
}

func TestBeforeStepWaitsOutQuiescence(t *testing.T) {
	source := &fakeNonceSource{nonce: 1}
	sequencer := NewNonceSequencer(source, 60*time.Millisecond, NewLoggerIPFS("test"))

	// No broadcast yet: no wait.
	started := time.Now()
	_, err := sequencer.BeforeStep(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 40*time.Millisecond)

	sequencer.NoteBroadcast()
	started = time.Now()
	_, err = sequencer.BeforeStep(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
}

func TestBeforeStepHonorsContextDuringWait(t *testing.T) {
	sequencer := NewNonceSequencer(&fakeNonceSource{}, time.Minute, NewLoggerIPFS("test"))
	sequencer.NoteBroadcast()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sequencer.BeforeStep(ctx, "STADDR")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBeforeStepWrapsLookupFailures(t *testing.T) {
	source := &fakeNonceSource{err: errors.New("network down")}
	sequencer := NewNonceSequencer(source, time.Millisecond, NewLoggerIPFS("test"))

	_, err := sequencer.BeforeStep(context.Background(), "STADDR")
	var lookupErr *NonceLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "STADDR", lookupErr.Address)
}

func TestBeforeStepPassesThroughTypedLookupErrors(t *testing.T) {
	typed := &NonceLookupError{Address: "STADDR", Err: errors.New("status 500")}
	sequencer := NewNonceSequencer(&fakeNonceSource{err: typed}, time.Millisecond, NewLoggerIPFS("test"))

	_, err := sequencer.BeforeStep(context.Background(), "STADDR")
	assert.Equal(t, typed, err)
}
