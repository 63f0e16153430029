// Package pricing is the domain adapter over the coalescing cache: it turns
// caller-supplied attribute records into a fingerprint key, delegates to
// coalesce.Cache.Fetch, and speaks to the upstream pricing oracle over
// plain HTTP with a bearer token and a context deadline.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shaolim/pricecoalescer/internal/fingerprint"
	"github.com/shaolim/pricecoalescer/internal/log"
	"github.com/shaolim/pricecoalescer/internal/pricingerr"
)

// OracleRequest is the wire shape POSTed to the upstream pricing oracle.
type OracleRequest struct {
	Attributes []fingerprint.RawAttributes `json:"attributes"`
}

// PricedAttribute is one priced line in the oracle's response.
type PricedAttribute struct {
	Period   string  `json:"period"`
	Hotel    string  `json:"hotel"`
	Room     string  `json:"room"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// OracleClient speaks to the rate-limited upstream pricing oracle.
type OracleClient struct {
	httpClient  *http.Client
	baseURL     string
	bearerToken string
}

func NewOracleClient(httpClient *http.Client, baseURL, bearerToken string) *OracleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OracleClient{httpClient: httpClient, baseURL: baseURL, bearerToken: bearerToken}
}

// FetchPricing POSTs attrs to the oracle and returns the raw JSON response
// body, which coalesce.Cache stores verbatim as V. Any non-200 response is
// returned as ErrUpstream carrying the status code and body; 4xx and 5xx
// are not distinguished, and the breaker counts each as a failure.
func (c *OracleClient) FetchPricing(ctx context.Context, attrs []fingerprint.RawAttributes) ([]byte, error) {
	body, err := json.Marshal(OracleRequest{Attributes: attrs})
	if err != nil {
		return nil, pricingerr.Wrap(err, "marshal oracle request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, pricingerr.Wrap(err, "build oracle request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("pricing: oracle request failed: %v", err)
		return nil, pricingerr.Wrap(err, "oracle request")
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pricingerr.Wrap(err, "read oracle response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Errorf("pricing: oracle returned status %d", resp.StatusCode)
		return nil, pricingerr.Wrapf(pricingerr.ErrUpstream, "oracle status %d: %s", resp.StatusCode, string(buf))
	}

	if !json.Valid(buf) {
		return nil, pricingerr.Wrapf(pricingerr.ErrUpstream, "oracle returned non-JSON body")
	}

	return buf, nil
}
