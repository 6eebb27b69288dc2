package custody

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	creds, _ := testCredentials(t)
	client, err := NewClient(server.URL, creds, "parent-org")
	require.NoError(t, err)
	return client
}

func TestGetOrganization(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/query/get_organization", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Stamp"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "org-1", req["organizationId"])

		json.NewEncoder(w).Encode(map[string]any{
			"organizationData": map[string]any{
				"organizationId":   "org-1",
				"organizationName": "Test Org",
				"users": []map[string]string{
					{"userId": "user-1", "userName": "alice", "userEmail": "alice@example.com"},
				},
			},
		})
	})

	org, err := client.GetOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", org.OrganizationID)

	user, ok := org.FindUser("user-1")
	require.True(t, ok)
	assert.Equal(t, "alice", user.UserName)

	_, ok = org.FindUser("missing")
	assert.False(t, ok)
}

func TestGetOrganizationNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"organizationData": map[string]any{}})
	})

	_, err := client.GetOrganization(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSubmitUnwrapsActivityEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/submit/sign_raw_payload", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"activity": map[string]any{
				"status": "ACTIVITY_STATUS_COMPLETED",
				"result": map[string]string{"r": "aa", "s": "bb", "v": "01"},
			},
		})
	})

	result, err := client.SignRawPayload(context.Background(), SignRawPayloadRequest{
		OrganizationID: "org-1",
		SignWith:       "02abc",
		Payload:        "deadbeef",
		Encoding:       EncodingHexadecimal,
		HashFunction:   HashFunctionNoOp,
	})
	require.NoError(t, err)
	assert.Equal(t, "aa", result.R)
	assert.Equal(t, "bb", result.S)
	assert.Equal(t, "01", result.V)
}

func TestServiceErrorSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"message": "policy denied", "code": 7})
	})

	_, err := client.CreateWallet(context.Background(), CreateWalletRequest{
		OrganizationID: "org-1",
		WalletName:     "w",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy denied")
}

func TestGetSubOrgIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/query/list_suborgs", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"organizationIds": []string{"sub-1", "sub-2"}})
	})

	ids, err := client.GetSubOrgIDs(context.Background(), "parent-org")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-1", "sub-2"}, ids)
}
