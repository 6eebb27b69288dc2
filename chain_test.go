package main

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-labs/tradenode/pkg/stacks"
)

func newTestChainClient(t *testing.T, handler http.HandlerFunc) *ChainClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewChainClient(ChainConfig{
		Network: stacks.NetworkTestnet,
		BaseURL: server.URL,
		APIKeys: []string{"key-1"},
	}, NewLoggerIPFS("test"))
}

func TestBroadcastAccepted(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(map[string]string{"txid": "abc123"})
	})

	result, err := client.Broadcast(context.Background(), []byte{0x00, 0x01})
	require.NoError(t, err)
	assert.True(t, result.Accepted())
	assert.Equal(t, "abc123", result.TxID)
}

func TestBroadcastAcceptedPlainString(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"abc123"`))
	})

	result, err := client.Broadcast(context.Background(), []byte{0x00})
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.TxID)
}

func TestBroadcastRejected(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":       "transaction rejected",
			"reason":      "NotEnoughFunds",
			"reason_data": map[string]string{"actual": "100", "expected": "200"},
		})
	})

	result, err := client.Broadcast(context.Background(), []byte{0x00})
	require.NoError(t, err)
	require.False(t, result.Accepted())
	assert.Equal(t, "NotEnoughFunds", result.Rejection.Reason)
	assert.Equal(t, big.NewInt(100), result.Rejection.ReasonData["actual"])
}

func TestNextNonce(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extended/v1/address/STADDR/nonces", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"last_executed_tx_nonce": 6,
			"possible_next_nonce":    7,
		})
	})

	nonce, err := client.NextNonce(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)
}

func TestNextNonceFailure(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream down"))
	})

	_, err := client.NextNonce(context.Background(), "STADDR")
	var lookupErr *NonceLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "STADDR", lookupErr.Address)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestStxBalance(t *testing.T) {
	client := newTestChainClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extended/v1/address/STADDR/stx", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"balance": "1500000"})
	})

	balance, err := client.StxBalance(context.Background(), "STADDR")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_500_000), balance)
}
