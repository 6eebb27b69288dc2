package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	submitPrefix = "/public/v1/submit/"
	queryPrefix  = "/public/v1/query/"

	defaultTimeout = 30 * time.Second
)

// Client talks to the custody service with one credential set. The same type
// serves both the parent organization and delegated sub-organization scopes;
// only the credential and default organization differ.
type Client struct {
	baseURL string
	orgID   string
	stamper *Stamper
	http    *http.Client
}

// NewClient builds a client scoped to the given organization.
func NewClient(baseURL string, creds Credentials, organizationID string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("custody base URL is required")
	}
	if organizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	stamper, err := NewStamper(creds)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		orgID:   organizationID,
		stamper: stamper,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

// OrganizationID returns the client's default organization scope.
func (c *Client) OrganizationID() string {
	return c.orgID
}

// activityEnvelope is the submit-endpoint response wrapper.
type activityEnvelope struct {
	Activity struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	} `json:"activity"`
}

type serviceError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	stamp, err := c.stamper.Stamp(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Stamp", stamp)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("custody request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read custody response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var svcErr serviceError
		if json.Unmarshal(respBody, &svcErr) == nil && svcErr.Message != "" {
			return fmt.Errorf("custody service: %s (status %d)", svcErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("custody service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode custody response: %w", err)
	}
	return nil
}

// submit posts an activity and unwraps its result into out.
func (c *Client) submit(ctx context.Context, activity string, reqBody, out any) error {
	var envelope activityEnvelope
	if err := c.post(ctx, submitPrefix+activity, reqBody, &envelope); err != nil {
		return err
	}
	if len(envelope.Activity.Result) == 0 {
		return fmt.Errorf("custody activity %s returned no result", activity)
	}
	if err := json.Unmarshal(envelope.Activity.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", activity, err)
	}
	return nil
}

// GetOrganization fetches an organization's directory, including root users.
func (c *Client) GetOrganization(ctx context.Context, organizationID string) (*Organization, error) {
	req := map[string]string{"organizationId": organizationID}
	var resp struct {
		OrganizationData Organization `json:"organizationData"`
	}
	if err := c.post(ctx, queryPrefix+"get_organization", req, &resp); err != nil {
		return nil, err
	}
	if resp.OrganizationData.OrganizationID == "" {
		return nil, fmt.Errorf("organization %s not found", organizationID)
	}
	return &resp.OrganizationData, nil
}

// GetSubOrgIDs lists the ids of all sub-organizations under a parent.
func (c *Client) GetSubOrgIDs(ctx context.Context, organizationID string) ([]string, error) {
	req := map[string]string{"organizationId": organizationID}
	var resp struct {
		OrganizationIDs []string `json:"organizationIds"`
	}
	if err := c.post(ctx, queryPrefix+"list_suborgs", req, &resp); err != nil {
		return nil, err
	}
	return resp.OrganizationIDs, nil
}

// GetWallets lists the wallets of an organization.
func (c *Client) GetWallets(ctx context.Context, organizationID string) ([]Wallet, error) {
	req := map[string]string{"organizationId": organizationID}
	var resp struct {
		Wallets []Wallet `json:"wallets"`
	}
	if err := c.post(ctx, queryPrefix+"list_wallets", req, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// GetWalletAccounts lists the derived accounts of a wallet.
func (c *Client) GetWalletAccounts(ctx context.Context, organizationID, walletID string) ([]WalletAccount, error) {
	req := map[string]string{"organizationId": organizationID, "walletId": walletID}
	var resp struct {
		Accounts []WalletAccount `json:"accounts"`
	}
	if err := c.post(ctx, queryPrefix+"list_wallet_accounts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// CreateSubOrganization creates a new custody boundary under the parent.
func (c *Client) CreateSubOrganization(ctx context.Context, req CreateSubOrganizationRequest) (*CreateSubOrganizationResult, error) {
	var result CreateSubOrganizationResult
	if err := c.submit(ctx, "create_sub_organization", req, &result); err != nil {
		return nil, err
	}
	if result.SubOrganizationID == "" {
		return nil, fmt.Errorf("custody service returned empty sub-organization id")
	}
	return &result, nil
}

// CreatePolicy installs an authorization rule and returns its id.
func (c *Client) CreatePolicy(ctx context.Context, req CreatePolicyRequest) (string, error) {
	var result struct {
		PolicyID string `json:"policyId"`
	}
	if err := c.submit(ctx, "create_policy", req, &result); err != nil {
		return "", err
	}
	if result.PolicyID == "" {
		return "", fmt.Errorf("custody service returned empty policy id")
	}
	return result.PolicyID, nil
}

// CreateWallet creates a wallet with the requested account specs.
func (c *Client) CreateWallet(ctx context.Context, req CreateWalletRequest) (*CreateWalletResult, error) {
	var result CreateWalletResult
	if err := c.submit(ctx, "create_wallet", req, &result); err != nil {
		return nil, err
	}
	if result.WalletID == "" {
		return nil, fmt.Errorf("custody service returned empty wallet id")
	}
	return &result, nil
}

// SignRawPayload signs an already-final digest with the account key
// identified by SignWith, subject to the organization's policies.
func (c *Client) SignRawPayload(ctx context.Context, req SignRawPayloadRequest) (*SignRawPayloadResult, error) {
	var result SignRawPayloadResult
	if err := c.submit(ctx, "sign_raw_payload", req, &result); err != nil {
		return nil, err
	}
	if result.R == "" || result.S == "" {
		return nil, fmt.Errorf("custody service returned incomplete signature")
	}
	return &result, nil
}
