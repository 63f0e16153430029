package main

import (
	"encoding/json"
	"net/http"

	"github.com/shaolim/pricecoalescer/internal/fingerprint"
	"github.com/shaolim/pricecoalescer/internal/log"
	"github.com/shaolim/pricecoalescer/internal/pricing"
	"github.com/shaolim/pricecoalescer/internal/pricingerr"
)

type pricingRequest struct {
	Attributes []fingerprint.RawAttributes `json:"attributes"`
}

// newPricingHandler exposes the adapter over HTTP: a thin shim so the
// daemon is runnable end to end, not a general-purpose routing layer.
func newPricingHandler(adapter *pricing.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req pricingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		priced, err := adapter.FetchPricing(r.Context(), req.Attributes)
		if err != nil {
			status := http.StatusInternalServerError
			if pricingerr.Is(err, pricingerr.ErrServiceUnavailable) {
				status = http.StatusServiceUnavailable
			}
			log.Errorf("pricing handler: %v", err)
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(priced)
	}
}
