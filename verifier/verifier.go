// Package verifier talks to a proof verification server.  The rollup treats
// verification as an oracle: it submits block commitments together with a
// proof and only acts on the accept/reject answer.
package verifier

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"tokamak-group-rollup/common"

	"github.com/dghubble/sling"
	ethCommon "github.com/ethereum/go-ethereum/common"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 2 * time.Second
)

// Proof is the zk proof as delivered by the proof server
type Proof struct {
	PiA      [3]*big.Int    `json:"pi_a"`
	PiB      [3][2]*big.Int `json:"pi_b"`
	PiC      [3]*big.Int    `json:"pi_c"`
	Protocol string         `json:"protocol"`
}

// Client is the interface to a verification server.  Each group is bound to
// one client by its verifier index.
type Client interface {
	// Blocking.  Returns whether the proof is valid over the commitments.
	VerifyProof(ctx context.Context, commitments []ethCommon.Hash, proof *Proof) (bool, error)
}

// ErrorServer is the return struct for an API error
type ErrorServer struct {
	Status  string `json:"status"`
	Message string `json:"msg"`
}

type verifyRequest struct {
	Commitments []ethCommon.Hash `json:"commitments"`
	Proof       *Proof           `json:"proof"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

type apiMethod string

const (
	// GET is an HTTP GET
	GET apiMethod = "GET"
	// POST is an HTTP POST with maybe JSON body
	POST apiMethod = "POST"
)

// ServerClient is a Client backed by an HTTP verification server
type ServerClient struct {
	URL    string
	client *sling.Sling
}

// NewServerClient creates a ServerClient with the verification server URL
func NewServerClient(URL string) *ServerClient {
	tr := &http.Transport{
		MaxIdleConns:       defaultMaxIdleConns,
		IdleConnTimeout:    defaultIdleConnTimeout,
		DisableCompression: true,
	}
	httpClient := &http.Client{Transport: tr}
	return &ServerClient{
		URL:    URL,
		client: sling.New().Base(URL).Client(httpClient),
	}
}

func (c *ServerClient) apiRequest(ctx context.Context, method apiMethod, path string,
	body interface{}, ret interface{}) error {
	path = strings.TrimPrefix(path, "/")
	var errSrv ErrorServer
	var req *http.Request
	var err error
	switch method {
	case GET:
		req, err = c.client.New().Get(path).Request()
	case POST:
		req, err = c.client.New().Post(path).BodyJSON(body).Request()
	default:
		return common.Wrap(fmt.Errorf("invalid http method: %v", method))
	}
	if err != nil {
		return common.Wrap(err)
	}
	res, err := c.client.Do(req.WithContext(ctx), ret, &errSrv)
	if err != nil {
		return common.Wrap(err)
	}
	defer res.Body.Close()
	if !(200 <= res.StatusCode && res.StatusCode < 300) {
		return common.Wrap(fmt.Errorf("verifier server %v: %v", res.StatusCode, errSrv.Message))
	}
	return nil
}

// VerifyProof implements the Client interface
func (c *ServerClient) VerifyProof(ctx context.Context, commitments []ethCommon.Hash,
	proof *Proof) (bool, error) {
	var res verifyResponse
	if err := c.apiRequest(ctx, POST, "/verify", verifyRequest{
		Commitments: commitments,
		Proof:       proof,
	}, &res); err != nil {
		return false, common.Wrap(err)
	}
	return res.Valid, nil
}

// MockClient is a mock verification server to be used in tests.  It doesn't
// verify anything.
type MockClient struct {
	Delay time.Duration
	// Reject makes every proof invalid
	Reject bool
}

// VerifyProof implements the Client interface
func (c *MockClient) VerifyProof(ctx context.Context, commitments []ethCommon.Hash,
	proof *Proof) (bool, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return false, common.Wrap(common.ErrDone)
		}
	}
	return !c.Reject, nil
}
