package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ghost-labs/tradenode/pkg/custody"
)

// signingAccountPath is the fixed derivation path of every trading account.
const signingAccountPath = "m/44'/5757'/0'/0/0"

// signingAccountParams are the fixed key parameters for trading wallets:
// secp256k1 under BIP32, compressed public-key address format.
var signingAccountParams = custody.AccountParams{
	Curve:         custody.CurveSecp256k1,
	PathFormat:    custody.PathFormatBIP32,
	Path:          signingAccountPath,
	AddressFormat: custody.AddressFormatCompressed,
}

// CustodyDirectory is the parent-scoped half of the custody service used by
// provisioning: identity lookup and sub-organization creation.
type CustodyDirectory interface {
	GetOrganization(ctx context.Context, organizationID string) (*custody.Organization, error)
	CreateSubOrganization(ctx context.Context, req custody.CreateSubOrganizationRequest) (*custody.CreateSubOrganizationResult, error)
}

// DelegatedScope operates inside a freshly created sub-organization with the
// delegated-operator credential.
type DelegatedScope interface {
	CreatePolicy(ctx context.Context, req custody.CreatePolicyRequest) (string, error)
	CreateWallet(ctx context.Context, req custody.CreateWalletRequest) (*custody.CreateWalletResult, error)
}

// DelegatedScopeFactory builds a delegated-credential client scoped to a
// sub-organization.
type DelegatedScopeFactory func(subOrgID string) (DelegatedScope, error)

// CacheRefresher triggers a best-effort refresh of the read-through
// metadata cache. Failures are the refresher's problem, not the caller's.
type CacheRefresher interface {
	Refresh()
}

// ProvisionConfig carries the static inputs of every provisioning call.
type ProvisionConfig struct {
	DelegatedPublicKey  string
	DelegatedUserName   string
	DelegatedAPIKeyName string
	PolicyName          string
	WalletName          string
}

func (c ProvisionConfig) validate() error {
	if c.DelegatedPublicKey == "" {
		return &ConfigurationError{Field: "delegated API public key"}
	}
	return nil
}

// ProvisionResult returns every identifier the new boundary produced.
type ProvisionResult struct {
	SubOrgID        string   `json:"subOrganizationId"`
	DelegatedUserID string   `json:"delegatedUserId"`
	EndUserID       string   `json:"endUserId"`
	PolicyID        string   `json:"policyId"`
	WalletID        string   `json:"walletId"`
	Addresses       []string `json:"addresses"`
}

// CustodyProvisioner creates the two-principal custody boundary that lets
// the backend sign under policy without ever holding the end user's key.
// Provisioning is not idempotent: each call creates a new organization.
type CustodyProvisioner struct {
	parent       CustodyDirectory
	newDelegated DelegatedScopeFactory
	cfg          ProvisionConfig
	cache        CacheRefresher
	metrics      *Metrics
	logger       Logger
}

// NewCustodyProvisioner wires the provisioner. cache may be nil when no
// read-through cache is running.
func NewCustodyProvisioner(parent CustodyDirectory, newDelegated DelegatedScopeFactory, cfg ProvisionConfig, cache CacheRefresher, metrics *Metrics, logger Logger) *CustodyProvisioner {
	return &CustodyProvisioner{
		parent:       parent,
		newDelegated: newDelegated,
		cfg:          cfg,
		cache:        cache,
		metrics:      metrics,
		logger:       logger.NewSystem("provisioner"),
	}
}

// Provision creates a sub-organization whose root identities are the
// delegated operator and the end user, installs the signing policy naming
// the delegated operator, and creates the trading wallet inside it.
func (p *CustodyProvisioner) Provision(ctx context.Context, endUserID, parentOrgID string) (*ProvisionResult, error) {
	if err := p.cfg.validate(); err != nil {
		return nil, err
	}
	if endUserID == "" {
		return nil, ValidationErrorf("end user id is required")
	}
	if parentOrgID == "" {
		return nil, ValidationErrorf("parent organization id is required")
	}
	logger := p.logger.With("endUser", endUserID)

	org, err := p.parent.GetOrganization(ctx, parentOrgID)
	if err != nil {
		return nil, &ProvisioningError{Stage: "identity lookup", Err: err}
	}
	endUser, ok := org.FindUser(endUserID)
	if !ok {
		return nil, &NotFoundError{Kind: "identity", ID: endUserID}
	}

	// Two root identities, quorum 1: either principal alone administers
	// the boundary. Transaction-signing authority is governed by the
	// policy below, not by the quorum.
	rootUsers := []custody.RootUserParams{
		{
			UserName: p.cfg.DelegatedUserName,
			UserTags: []string{},
			APIKeys: []custody.APIKeyParams{{
				APIKeyName: p.cfg.DelegatedAPIKeyName,
				PublicKey:  p.cfg.DelegatedPublicKey,
				CurveType:  custody.CurveAPIKeyP256,
			}},
			Authenticators: []string{},
			OauthProviders: []string{},
		},
		{
			UserName:       endUser.UserName,
			UserEmail:      endUserEmail(endUser),
			APIKeys:        []custody.APIKeyParams{},
			Authenticators: []string{},
			OauthProviders: []string{},
		},
	}

	subOrg, err := p.parent.CreateSubOrganization(ctx, custody.CreateSubOrganizationRequest{
		OrganizationID:      parentOrgID,
		SubOrganizationName: subOrgName(endUserID),
		RootUsers:           rootUsers,
		RootQuorumThreshold: 1,
	})
	if err != nil {
		return nil, &ProvisioningError{Stage: "sub-organization creation", Err: err}
	}
	if len(subOrg.RootUserIDs) < 2 {
		return nil, &ProvisioningError{
			Stage: "sub-organization creation",
			Err:   fmt.Errorf("expected 2 root user ids, got %d", len(subOrg.RootUserIDs)),
		}
	}
	delegatedUserID := subOrg.RootUserIDs[0]
	endUserIdentityID := subOrg.RootUserIDs[1]
	logger.Info("created sub-organization", "subOrg", subOrg.SubOrganizationID, "delegatedUser", delegatedUserID, "endUser", endUserIdentityID)

	delegated, err := p.newDelegated(subOrg.SubOrganizationID)
	if err != nil {
		return nil, &ProvisioningError{Stage: "delegated client setup", Err: err}
	}

	// The policy is an opaque authorization artifact: created once here,
	// evaluated entirely by the custody service, never re-interpreted.
	policyID, err := delegated.CreatePolicy(ctx, custody.CreatePolicyRequest{
		OrganizationID: subOrg.SubOrganizationID,
		PolicyName:     p.cfg.PolicyName,
		Effect:         custody.EffectAllow,
		Condition:      "true",
		Consensus:      fmt.Sprintf("approvers.any(user, user.id == '%s')", delegatedUserID),
		Notes:          "Auto-generated policy for delegated operator to sign with all wallets",
	})
	if err != nil {
		return nil, &ProvisioningError{Stage: "policy creation", Err: err}
	}
	logger.Info("installed signing policy", "policy", policyID, "subOrg", subOrg.SubOrganizationID)

	wallet, err := delegated.CreateWallet(ctx, custody.CreateWalletRequest{
		OrganizationID: subOrg.SubOrganizationID,
		WalletName:     p.cfg.WalletName,
		Accounts:       []custody.AccountParams{signingAccountParams},
	})
	if err != nil {
		return nil, &ProvisioningError{Stage: "wallet creation", Err: err}
	}
	logger.Info("created trading wallet", "wallet", wallet.WalletID, "subOrg", subOrg.SubOrganizationID)

	if p.metrics != nil {
		p.metrics.ProvisionTotal.Inc()
	}
	if p.cache != nil {
		// Best effort: the cache catches up on its own schedule anyway.
		p.cache.Refresh()
	}

	return &ProvisionResult{
		SubOrgID:        subOrg.SubOrganizationID,
		DelegatedUserID: delegatedUserID,
		EndUserID:       endUserIdentityID,
		PolicyID:        policyID,
		WalletID:        wallet.WalletID,
		Addresses:       wallet.Addresses,
	}, nil
}

func endUserEmail(u custody.User) string {
	if u.UserEmail != "" {
		return u.UserEmail
	}
	return u.UserName + "@temp.com"
}

func subOrgName(endUserID string) string {
	sanitized := strings.NewReplacer("@", "_", ".", "_").Replace(endUserID)
	return fmt.Sprintf("trading-org-%s_%d", sanitized, time.Now().UnixMilli())
}
