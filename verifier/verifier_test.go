package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClientVerifyProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// accept iff exactly one commitment was sent
		json.NewEncoder(w).Encode(verifyResponse{Valid: len(req.Commitments) == 1})
	}))
	defer srv.Close()

	c := NewServerClient(srv.URL)
	valid, err := c.VerifyProof(context.Background(),
		[]ethCommon.Hash{{0x01}}, &Proof{Protocol: "groth"})
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = c.VerifyProof(context.Background(), nil, &Proof{})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestServerClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorServer{Status: "failed", Message: "boom"})
	}))
	defer srv.Close()

	c := NewServerClient(srv.URL)
	_, err := c.VerifyProof(context.Background(), nil, &Proof{})
	assert.Error(t, err)
}

func TestMockClient(t *testing.T) {
	valid, err := (&MockClient{}).VerifyProof(context.Background(), nil, &Proof{})
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = (&MockClient{Reject: true}).VerifyProof(context.Background(), nil, &Proof{})
	require.NoError(t, err)
	assert.False(t, valid)
}
