package pricing

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shaolim/pricecoalescer/internal/coalesce"
	"github.com/shaolim/pricecoalescer/internal/fingerprint"
	"github.com/shaolim/pricecoalescer/internal/pricingerr"
)

// Adapter exposes the single domain operation: resolve priced attributes for
// a caller's request, transparently coalescing concurrent identical
// requests behind one upstream call.
type Adapter struct {
	cache  *coalesce.Cache
	client *OracleClient
}

func NewAdapter(cache *coalesce.Cache, client *OracleClient) *Adapter {
	return &Adapter{cache: cache, client: client}
}

// FetchPricing resolves prices for attrs. Empty or entirely unrecognized
// input yields an empty, error-free result; ErrInvalidInput never reaches
// the caller as an error. A breaker-open or exhausted-retry path with no
// stale fallback available surfaces ErrServiceUnavailable.
func (a *Adapter) FetchPricing(ctx context.Context, attrs []fingerprint.RawAttributes) ([]PricedAttribute, error) {
	full, ok := fingerprint.Fingerprint(attrs)
	if !ok {
		return []PricedAttribute{}, nil
	}
	key := strings.TrimPrefix(full, fingerprint.Namespace)

	raw, err := a.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return a.client.FetchPricing(ctx, attrs)
	})
	if err != nil {
		return nil, a.translate(err)
	}

	var priced []PricedAttribute
	if err := json.Unmarshal(raw, &priced); err != nil {
		return nil, pricingerr.Wrap(err, "decode oracle response")
	}
	return priced, nil
}

// translate maps internal cache-layer errors onto the user-visible taxonomy:
// a denial of service (breaker open or retries exhausted) with no stale
// value available becomes ErrServiceUnavailable, while an upstream failure
// propagates as-is so callers can distinguish it.
func (a *Adapter) translate(err error) error {
	if pricingerr.Is(err, pricingerr.ErrBreakerOpen) || pricingerr.Is(err, pricingerr.ErrWaitTimeout) {
		return pricingerr.Wrap(pricingerr.ErrServiceUnavailable, err.Error())
	}
	return err
}
