package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghost-labs/tradenode/pkg/stacks"
)

const (
	// satsPerStx is the fixed demonstration exchange rate between the
	// native token and the wrapped bitcoin asset.
	satsPerStx = 500
	// microPerStx is the smallest-unit scale of the native token.
	microPerStx = 1_000_000
)

// StepStatus tracks one automation step through its lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// RunStatus is the terminal classification of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// AutomationStep is one sequential transaction of a run.
type AutomationStep struct {
	Index  int        `json:"index"`
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	TxID   string     `json:"txId,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// AutomationRun is the full record of one demonstration sequence. A failed
// run keeps the index of the step that broke the chain; steps after it are
// never attempted and stay pending.
type AutomationRun struct {
	ID         string           `json:"id"`
	AccountID  string           `json:"accountId"`
	Address    string           `json:"address"`
	Status     RunStatus        `json:"status"`
	FailedStep int              `json:"failedStep"`
	Steps      []AutomationStep `json:"steps"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt,omitempty"`
}

// AutomationConfig carries the static automation inputs.
type AutomationConfig struct {
	// AMMContract is the swap contract as "ADDRESS.name".
	AMMContract string
	// SwapStxFunction and SwapSbtcFunction are the two swap entry points.
	SwapStxFunction  string
	SwapSbtcFunction string
}

// AutomationParams are the per-run inputs.
type AutomationParams struct {
	// AccountID selects the cached wallet account that signs every step.
	AccountID string
	// Amount is the native-token amount in human units, e.g. "1.5".
	Amount string
	// Recipient receives the final transfer.
	Recipient string
}

// AutomationOrchestrator drives the fixed three-step sequence: swap the
// native token into the wrapped bitcoin asset, swap it back, then transfer
// the native token to a recipient. Each step waits for nonce quiescence,
// fetches a fresh nonce and broadcasts exactly one transaction.
type AutomationOrchestrator struct {
	cfg       AutomationConfig
	store     *Store
	pipeline  *SigningPipeline
	sequencer *NonceSequencer
	notifier  *Notifier
	metrics   *Metrics
	logger    Logger
}

// NewAutomationOrchestrator wires the orchestrator. notifier may be nil.
func NewAutomationOrchestrator(cfg AutomationConfig, store *Store, pipeline *SigningPipeline, sequencer *NonceSequencer, notifier *Notifier, metrics *Metrics, logger Logger) *AutomationOrchestrator {
	if cfg.SwapStxFunction == "" {
		cfg.SwapStxFunction = "swap-stx-to-sbtc"
	}
	if cfg.SwapSbtcFunction == "" {
		cfg.SwapSbtcFunction = "swap-sbtc-to-stx"
	}
	return &AutomationOrchestrator{
		cfg:       cfg,
		store:     store,
		pipeline:  pipeline,
		sequencer: sequencer,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.NewSystem("automation"),
	}
}

// derivedSats converts a micro-denominated native amount to the wrapped
// asset's satoshi amount at the fixed rate.
func derivedSats(micro uint64) uint64 {
	return micro * satsPerStx / microPerStx
}

// Run executes the sequence and returns the run record. The error return
// covers setup failures only; per-step failures are reported through the
// run's status and step records.
func (o *AutomationOrchestrator) Run(ctx context.Context, params AutomationParams) (*AutomationRun, error) {
	if o.cfg.AMMContract == "" {
		return nil, &ConfigurationError{Field: "AMM contract"}
	}
	if params.Recipient == "" {
		return nil, ValidationErrorf("recipient is required")
	}
	account, err := o.store.GetAccountContext(params.AccountID)
	if err != nil {
		return nil, err
	}
	micro, err := ConvertToBaseUnit(params.Amount, microStxDecimals)
	if err != nil {
		return nil, err
	}
	microU64, err := parseRequiredUint64(micro, "amount")
	if err != nil {
		return nil, err
	}
	if microU64 == 0 {
		return nil, ValidationErrorf("amount must be positive")
	}
	sats := derivedSats(microU64)
	if sats == 0 {
		return nil, ValidationErrorf("amount too small to swap at %d sats per STX", satsPerStx)
	}

	steps := []struct {
		name  string
		build BuildParams
	}{
		{
			name: "swap-stx-to-sbtc",
			build: BuildParams{
				Kind:                TxKindContractCall,
				PublicKey:           account.PublicKey,
				Contract:            o.cfg.AMMContract,
				Function:            o.cfg.SwapStxFunction,
				Args:                []stacks.ClarityValue{stacks.Uint(microU64)},
				AllowPostConditions: true,
			},
		},
		{
			name: "swap-sbtc-to-stx",
			build: BuildParams{
				Kind:                TxKindContractCall,
				PublicKey:           account.PublicKey,
				Contract:            o.cfg.AMMContract,
				Function:            o.cfg.SwapSbtcFunction,
				Args:                []stacks.ClarityValue{stacks.Uint(sats)},
				AllowPostConditions: true,
			},
		},
		{
			name: "transfer-stx",
			build: BuildParams{
				Kind:      TxKindTokenTransfer,
				PublicKey: account.PublicKey,
				Recipient: params.Recipient,
				Amount:    micro,
				Memo:      "automated transfer",
			},
		},
	}

	run := &AutomationRun{
		ID:         uuid.NewString(),
		AccountID:  account.AccountID,
		Address:    account.Address,
		Status:     RunRunning,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	for i, step := range steps {
		run.Steps = append(run.Steps, AutomationStep{Index: i, Name: step.name, Status: StepPending})
	}
	o.publish("automation.run.started", run)
	o.logger.Info("automation run started", "run", run.ID, "address", account.Address, "amount", params.Amount)

	for i, step := range steps {
		run.Steps[i].Status = StepInProgress
		o.publish("automation.step.started", run.Steps[i])

		txID, err := o.executeStep(ctx, account, step.build)
		if err != nil {
			run.Steps[i].Status = StepError
			run.Steps[i].Error = err.Error()
			run.Status = RunError
			run.FailedStep = i
			o.finish(run)
			o.logger.Warn("automation run failed", "run", run.ID, "step", step.name, "error", err)
			return run, nil
		}
		run.Steps[i].Status = StepCompleted
		run.Steps[i].TxID = txID
		o.publish("automation.step.completed", run.Steps[i])
		o.logger.Info("automation step completed", "run", run.ID, "step", step.name, "txid", txID)
	}

	run.Status = RunCompleted
	o.finish(run)
	o.logger.Info("automation run completed", "run", run.ID)
	return run, nil
}

// executeStep fetches a fresh nonce, builds, signs and broadcasts one
// transaction. A rejected broadcast is a step failure.
func (o *AutomationOrchestrator) executeStep(ctx context.Context, account *AccountContext, build BuildParams) (string, error) {
	nonce, err := o.sequencer.BeforeStep(ctx, account.Address)
	if err != nil {
		return "", err
	}
	build.Nonce = &nonce

	tx, err := o.pipeline.BuildUnsigned(build)
	if err != nil {
		return "", err
	}
	outcome, err := o.pipeline.SignAndBroadcast(ctx, tx, account.PublicKey, account.OrganizationID)
	if err != nil {
		return "", err
	}
	o.sequencer.NoteBroadcast()
	if recordErr := o.store.RecordBroadcast(account.OrganizationID, account.Address, build.Kind, outcome); recordErr != nil {
		o.logger.Error("failed to record broadcast", "error", recordErr)
	}
	if !outcome.Accepted() {
		return "", fmt.Errorf("broadcast rejected: %s", outcome.Rejection.Message())
	}
	return outcome.TxID, nil
}

func (o *AutomationOrchestrator) finish(run *AutomationRun) {
	run.FinishedAt = time.Now().UTC()
	if o.metrics != nil {
		o.metrics.AutomationRuns.WithLabelValues(string(run.Status)).Inc()
	}
	o.publish("automation.run.finished", run)
}

func (o *AutomationOrchestrator) publish(eventType string, data any) {
	if o.notifier != nil {
		o.notifier.Publish(eventType, data)
	}
}
