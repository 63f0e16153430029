package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shaolim/pricecoalescer/internal/breaker"
	"github.com/shaolim/pricecoalescer/internal/coalesce"
	"github.com/shaolim/pricecoalescer/internal/fingerprint"
	"github.com/shaolim/pricecoalescer/internal/store"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, func()) {
	t.Helper()
	server := httptest.NewServer(handler)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisStore(client)
	b := breaker.New(breaker.Settings{Name: "pricing-test", FailureThreshold: 5, Cooldown: time.Second})
	cache := coalesce.New(s, b, coalesce.Config{
		FreshTTL:             time.Minute,
		StaleTTL:             5 * time.Minute,
		LeaseTTL:             2 * time.Second,
		FollowerTimeout:      200 * time.Millisecond,
		FollowerRetries:      1,
		FetchBudget:          time.Second,
		EnableStaleRetention: true,
	})
	oracle := NewOracleClient(server.Client(), server.URL, "test-token")
	adapter := NewAdapter(cache, oracle)

	cleanup := func() {
		server.Close()
		_ = s.Close()
		mr.Close()
	}
	return adapter, cleanup
}

func TestFetchPricingEmptyInputYieldsEmptyResult(t *testing.T) {
	adapter, cleanup := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("oracle must not be called for empty input")
	})
	defer cleanup()

	got, err := adapter.FetchPricing(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestFetchPricingRoundTrip(t *testing.T) {
	var calls int32
	adapter, cleanup := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]PricedAttribute{
			{Period: "Summer", Hotel: "H", Room: "R", Price: 199.5, Currency: "USD"},
		})
	})
	defer cleanup()

	attrs := []fingerprint.RawAttributes{{"period": "Summer", "hotel": "H", "room": "R"}}

	got, err := adapter.FetchPricing(context.Background(), attrs)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].Price != 199.5 {
		t.Fatalf("unexpected result: %+v", got)
	}

	// second call for the same attributes should be a cache hit
	_, err = adapter.FetchPricing(context.Background(), attrs)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected oracle called exactly once across both fetches, got %d", calls)
	}
}

func TestFetchPricingUpstreamErrorPropagates(t *testing.T) {
	adapter, cleanup := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	defer cleanup()

	attrs := []fingerprint.RawAttributes{{"period": "Summer", "hotel": "H", "room": "R"}}
	_, err := adapter.FetchPricing(context.Background(), attrs)
	if err == nil {
		t.Fatalf("expected an error from a failing oracle")
	}
}
