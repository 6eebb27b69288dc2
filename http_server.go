package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ghost-labs/tradenode/pkg/stacks"
)

const httpReadTimeout = 15 * time.Second

// Server exposes the trading operations over a JSON HTTP API.
type Server struct {
	cfg          *Config
	provisioner  *CustodyProvisioner
	orchestrator *AutomationOrchestrator
	pipeline     *SigningPipeline
	sequencer    *NonceSequencer
	store        *Store
	cache        *CacheWorker
	notifier     *Notifier
	validate     *validator.Validate
	logger       Logger
}

// NewServer wires the HTTP layer.
func NewServer(cfg *Config, provisioner *CustodyProvisioner, orchestrator *AutomationOrchestrator, pipeline *SigningPipeline, sequencer *NonceSequencer, store *Store, cache *CacheWorker, notifier *Notifier, logger Logger) *Server {
	return &Server{
		cfg:          cfg,
		provisioner:  provisioner,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		sequencer:    sequencer,
		store:        store,
		cache:        cache,
		notifier:     notifier,
		validate:     validator.New(),
		logger:       logger.NewSystem("http"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/provision", s.handleProvision)
	mux.HandleFunc("POST /v1/send-stx", s.handleSendStx)
	mux.HandleFunc("POST /v1/swap-stx-to-sbtc", s.handleSwapStxToSbtc)
	mux.HandleFunc("POST /v1/swap-sbtc-to-stx", s.handleSwapSbtcToStx)
	mux.HandleFunc("POST /v1/automation/run", s.handleAutomationRun)
	mux.HandleFunc("GET /v1/organizations", s.handleListOrganizations)
	mux.HandleFunc("GET /v1/broadcasts", s.handleListBroadcasts)
	mux.HandleFunc("POST /v1/cache/refresh", s.handleCacheRefresh)
	mux.HandleFunc("GET /ws", s.notifier.HandleWS)
	return mux
}

// ListenAndServe runs the API server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.serverEnv.ListenAddr,
		Handler:     s.Handler(),
		ReadTimeout: httpReadTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type provisionRequest struct {
	EndUserID string `json:"endUserId" validate:"required"`
	// OrganizationID defaults to the configured parent organization.
	OrganizationID string `json:"organizationId"`
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	orgID := req.OrganizationID
	if orgID == "" {
		orgID = s.cfg.custodyEnv.ParentOrgID
	}
	result, err := s.provisioner.Provision(r.Context(), req.EndUserID, orgID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type sendStxRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	// Amount is in human units, e.g. "1.5".
	Amount string `json:"amount" validate:"required"`
	Memo   string `json:"memo"`
	Fee    string `json:"fee"`
}

func (s *Server) handleSendStx(w http.ResponseWriter, r *http.Request) {
	var req sendStxRequest
	if !s.decode(w, r, &req) {
		return
	}
	micro, err := ConvertToBaseUnit(req.Amount, microStxDecimals)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.executeSingle(w, r, req.AccountID, BuildParams{
		Kind:      TxKindTokenTransfer,
		Recipient: req.Recipient,
		Amount:    micro,
		Memo:      req.Memo,
		Fee:       req.Fee,
	})
}

type swapRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	// Amount is in the source asset's human units.
	Amount string `json:"amount" validate:"required"`
	Fee    string `json:"fee"`
}

func (s *Server) handleSwapStxToSbtc(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !s.decode(w, r, &req) {
		return
	}
	micro, err := parseSwapAmount(req.Amount, microStxDecimals)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.executeSingle(w, r, req.AccountID, BuildParams{
		Kind:                TxKindContractCall,
		Contract:            s.cfg.serverEnv.AMMContract,
		Function:            s.orchestrator.cfg.SwapStxFunction,
		Args:                []stacks.ClarityValue{stacks.Uint(micro)},
		AllowPostConditions: true,
		Fee:                 req.Fee,
	})
}

func (s *Server) handleSwapSbtcToStx(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !s.decode(w, r, &req) {
		return
	}
	sats, err := parseSwapAmount(req.Amount, s.cfg.assets.DecimalsFor("sBTC", 8))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.executeSingle(w, r, req.AccountID, BuildParams{
		Kind:                TxKindContractCall,
		Contract:            s.cfg.serverEnv.AMMContract,
		Function:            s.orchestrator.cfg.SwapSbtcFunction,
		Args:                []stacks.ClarityValue{stacks.Uint(sats)},
		AllowPostConditions: true,
		Fee:                 req.Fee,
	})
}

type automationRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
}

func (s *Server) handleAutomationRun(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if !s.decode(w, r, &req) {
		return
	}
	run, err := s.orchestrator.Run(r.Context(), AutomationParams{
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Recipient: req.Recipient,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.store.ListOrganizations()
	if err != nil {
		s.writeError(w, err)
		return
	}
	type orgView struct {
		ID       string                 `json:"id"`
		Name     string                 `json:"name"`
		Wallets  []TradingWallet        `json:"wallets,omitempty"`
		Accounts []TradingWalletAccount `json:"accounts,omitempty"`
	}
	views := make([]orgView, 0, len(orgs))
	for _, org := range orgs {
		view := orgView{ID: org.ID, Name: org.Name}
		wallets, err := s.store.ListWallets(org.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		view.Wallets = wallets
		for _, wallet := range wallets {
			accounts, err := s.store.ListWalletAccounts(wallet.ID)
			if err != nil {
				s.writeError(w, err)
				return
			}
			view.Accounts = append(view.Accounts, accounts...)
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": views})
}

func (s *Server) handleListBroadcasts(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organizationId")
	if orgID == "" {
		writeJSONError(w, http.StatusBadRequest, "organizationId query parameter is required")
		return
	}
	options := &ListOptions{}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		options.Offset = uint32(n)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		options.Limit = uint32(n)
	}
	records, err := s.store.ListBroadcasts(orgID, options)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"broadcasts": records})
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	s.cache.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh queued"})
}

// executeSingle runs one user-initiated transaction: fresh nonce, build,
// sign, broadcast, audit record. A network rejection is reported in the
// response body, not as an HTTP error.
func (s *Server) executeSingle(w http.ResponseWriter, r *http.Request, accountID string, build BuildParams) {
	account, err := s.store.GetAccountContext(accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nonce, err := s.sequencer.BeforeStep(r.Context(), account.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	build.PublicKey = account.PublicKey
	build.Nonce = &nonce

	tx, err := s.pipeline.BuildUnsigned(build)
	if err != nil {
		s.writeError(w, err)
		return
	}
	outcome, err := s.pipeline.SignAndBroadcast(r.Context(), tx, account.PublicKey, account.OrganizationID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sequencer.NoteBroadcast()
	if err := s.store.RecordBroadcast(account.OrganizationID, account.Address, build.Kind, outcome); err != nil {
		s.logger.Error("failed to record broadcast", "error", err)
	}

	resp := map[string]any{"accepted": outcome.Accepted()}
	if outcome.Accepted() {
		resp["txId"] = outcome.TxID
		resp["recoveryId"] = outcome.RecoveryID
		resp["attempts"] = outcome.Attempts
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp["error"] = outcome.Rejection.Message()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFoundErr):
		writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		// Configuration gaps and upstream failures are server faults.
		s.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseSwapAmount(amount string, decimals int32) (uint64, error) {
	base, err := ConvertToBaseUnit(amount, decimals)
	if err != nil {
		return 0, err
	}
	return parseRequiredUint64(base, "amount")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
