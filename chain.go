package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/ghost-labs/tradenode/pkg/stacks"
)

const chainRequestTimeout = 30 * time.Second

// ChainConfig configures the blockchain API client.
type ChainConfig struct {
	Network stacks.Network
	BaseURL string
	// APIKeys is a pool of API keys; each request picks one at random to
	// spread rate limits.
	APIKeys []string
}

// ChainClient talks to the blockchain network's HTTP API: transaction
// submission, nonce queries and balance reads.
type ChainClient struct {
	cfg    ChainConfig
	http   *http.Client
	logger Logger
}

// Broadcaster submits signed transaction bytes to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (BroadcastResult, error)
}

// NonceSource returns the network's next usable nonce for an account.
type NonceSource interface {
	NextNonce(ctx context.Context, address string) (uint64, error)
}

// NewChainClient builds the network client for the configured network.
func NewChainClient(cfg ChainConfig, logger Logger) *ChainClient {
	return &ChainClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: chainRequestTimeout},
		logger: logger.NewSystem("chain"),
	}
}

// Network returns the configured network selector.
func (c *ChainClient) Network() stacks.Network {
	return c.cfg.Network
}

func (c *ChainClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if len(c.cfg.APIKeys) > 0 {
		req.Header.Set("x-api-key", c.cfg.APIKeys[rand.Intn(len(c.cfg.APIKeys))])
	}
}

// Broadcast submits signed transaction bytes. A rejection comes back as a
// typed result; an error means the submission itself could not complete and
// it is unknown whether the network saw the transaction.
func (c *ChainClient) Broadcast(ctx context.Context, rawTx []byte) (BroadcastResult, error) {
	url := c.cfg.BaseURL + "/v2/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(rawTx))
	if err != nil {
		return BroadcastResult{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("read broadcast response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		txid := strings.Trim(strings.TrimSpace(string(body)), `"`)
		var asJSON struct {
			TxID string `json:"txid"`
		}
		if err := json.Unmarshal(body, &asJSON); err == nil && asJSON.TxID != "" {
			txid = asJSON.TxID
		}
		c.logger.Info("transaction accepted", "txid", txid)
		return BroadcastResult{TxID: txid}, nil
	}

	rejection := parseRejection(body)
	c.logger.Warn("transaction rejected", "code", rejection.Code, "reason", rejection.Reason)
	return BroadcastResult{Rejection: rejection}, nil
}

// NextNonce queries the network's possible-next-nonce view for an address.
func (c *ChainClient) NextNonce(ctx context.Context, address string) (uint64, error) {
	url := fmt.Sprintf("%s/extended/v1/address/%s/nonces", c.cfg.BaseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &NonceLookupError{Address: address, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NonceLookupError{Address: address, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &NonceLookupError{
			Address: address,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var data struct {
		PossibleNextNonce uint64 `json:"possible_next_nonce"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, &NonceLookupError{Address: address, Err: err}
	}
	return data.PossibleNextNonce, nil
}

// StxBalance reads an address's native token balance in micro-STX. Display
// formatting is the caller's concern.
func (c *ChainClient) StxBalance(ctx context.Context, address string) (*big.Int, error) {
	url := fmt.Sprintf("%s/extended/v1/address/%s/stx", c.cfg.BaseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balance request returned status %d", resp.StatusCode)
	}

	var data struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(data.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable balance %q", data.Balance)
	}
	return balance, nil
}
