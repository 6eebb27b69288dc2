package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-labs/tradenode/pkg/custody"
	"github.com/ghost-labs/tradenode/pkg/stacks"
)

// scriptedBroadcaster replays a fixed sequence of results, then accepts
// everything else.
type scriptedBroadcaster struct {
	results []BroadcastResult
	calls   int
}

func (b *scriptedBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (BroadcastResult, error) {
	i := b.calls
	b.calls++
	if i < len(b.results) {
		return b.results[i], nil
	}
	return BroadcastResult{TxID: fmt.Sprintf("tx-%d", i)}, nil
}

func newTestOrchestrator(t *testing.T, chain Broadcaster) (*AutomationOrchestrator, *Store) {
	t.Helper()
	logger := NewLoggerIPFS("test")
	store := NewStore(setupTestDB(t))
	seedAccount(t, store)

	signer := &fakeSigner{result: custody.SignRawPayloadResult{
		V: "01",
		R: strings.Repeat("a", 64),
		S: strings.Repeat("b", 64),
	}}
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	pipeline := NewSigningPipeline(stacks.NetworkMainnet, signer, chain, true, metrics, logger)
	sequencer := NewNonceSequencer(&fakeNonceSource{nonce: 5}, time.Millisecond, logger)

	orchestrator := NewAutomationOrchestrator(AutomationConfig{
		AMMContract: testContract,
	}, store, pipeline, sequencer, nil, metrics, logger)
	return orchestrator, store
}

func runParams() AutomationParams {
	return AutomationParams{AccountID: "account-1", Amount: "1", Recipient: testRecipient}
}

func TestAutomationRunCompletes(t *testing.T) {
	chain := &scriptedBroadcaster{}
	orchestrator, store := newTestOrchestrator(t, chain)

	run, err := orchestrator.Run(context.Background(), runParams())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, -1, run.FailedStep)
	require.Len(t, run.Steps, 3)
	assert.Equal(t, "swap-stx-to-sbtc", run.Steps[0].Name)
	assert.Equal(t, "swap-sbtc-to-stx", run.Steps[1].Name)
	assert.Equal(t, "transfer-stx", run.Steps[2].Name)
	for _, step := range run.Steps {
		assert.Equal(t, StepCompleted, step.Status)
		assert.NotEmpty(t, step.TxID)
	}
	assert.Equal(t, 3, chain.calls)
	assert.False(t, run.FinishedAt.IsZero())

	records, err := store.ListBroadcasts("org-1", nil)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestAutomationStepFailureSkipsRemaining(t *testing.T) {
	chain := &scriptedBroadcaster{results: []BroadcastResult{
		{TxID: "tx-0"},
		{Rejection: &BroadcastRejection{Code: "transaction rejected", Reason: "NotEnoughFunds"}},
	}}
	orchestrator, _ := newTestOrchestrator(t, chain)

	run, err := orchestrator.Run(context.Background(), runParams())
	require.NoError(t, err)

	assert.Equal(t, RunError, run.Status)
	assert.Equal(t, 1, run.FailedStep)
	assert.Equal(t, StepCompleted, run.Steps[0].Status)
	assert.Equal(t, StepError, run.Steps[1].Status)
	assert.Contains(t, run.Steps[1].Error, "NotEnoughFunds")
	// The third step is never attempted and stays pending.
	assert.Equal(t, StepPending, run.Steps[2].Status)
	assert.Equal(t, 2, chain.calls)
}

func TestAutomationStatusWireValues(t *testing.T) {
	run := AutomationRun{
		Status: RunError,
		Steps: []AutomationStep{
			{Status: StepPending},
			{Status: StepInProgress},
			{Status: StepCompleted},
			{Status: StepError},
		},
	}
	data, err := json.Marshal(run)
	require.NoError(t, err)

	for _, want := range []string{`"pending"`, `"in_progress"`, `"completed"`, `"error"`} {
		assert.Contains(t, string(data), want)
	}

	run.Status = RunRunning
	data, err = json.Marshal(run)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"running"`)
}

func TestAutomationDerivedSwapAmounts(t *testing.T) {
	assert.Equal(t, uint64(500), derivedSats(1_000_000))
	assert.Equal(t, uint64(750), derivedSats(1_500_000))
	assert.Equal(t, uint64(0), derivedSats(1))
}

func TestAutomationRunValidation(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &scriptedBroadcaster{})

	_, err := orchestrator.Run(context.Background(), AutomationParams{AccountID: "account-1", Amount: "1"})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = orchestrator.Run(context.Background(), AutomationParams{AccountID: "missing", Amount: "1", Recipient: testRecipient})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = orchestrator.Run(context.Background(), AutomationParams{AccountID: "account-1", Amount: "0", Recipient: testRecipient})
	assert.ErrorAs(t, err, &validationErr)

	// One micro-STX rounds to zero sats at the fixed rate.
	_, err = orchestrator.Run(context.Background(), AutomationParams{AccountID: "account-1", Amount: "0.000001", Recipient: testRecipient})
	assert.ErrorAs(t, err, &validationErr)
}

func TestAutomationRequiresContract(t *testing.T) {
	logger := NewLoggerIPFS("test")
	store := NewStore(setupTestDB(t))
	orchestrator := NewAutomationOrchestrator(AutomationConfig{}, store, nil, nil, nil, nil, logger)

	_, err := orchestrator.Run(context.Background(), runParams())
	var configErr *ConfigurationError
	assert.ErrorAs(t, err, &configErr)
}
