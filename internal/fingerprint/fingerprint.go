// Package fingerprint derives the stable cache key from a caller's request
// attributes: deterministic, side-effect free, and insensitive to
// attribute order or field-name casing.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Namespace prefixes every derived fingerprint and the cache keys built
// from it.
const Namespace = "pricing:"

// RawAttributes is the tolerant input shape: callers may spell fields in
// any case (Period, period, PERIOD, ...); unrecognized fields are ignored.
type RawAttributes map[string]interface{}

// Attributes is the canonical, recognized record.
type Attributes struct {
	Period string `json:"period"`
	Hotel  string `json:"hotel"`
	Room   string `json:"room"`
}

var recognizedFields = map[string]func(*Attributes, string){
	"period": func(a *Attributes, v string) { a.Period = v },
	"hotel":  func(a *Attributes, v string) { a.Hotel = v },
	"room":   func(a *Attributes, v string) { a.Room = v },
}

// canonicalize normalizes a raw attribute record to {period, hotel, room},
// accepting case-insensitive field names. Missing fields are left empty
// (dropped, not defaulted); unknown fields are ignored.
func canonicalize(raw RawAttributes) Attributes {
	var a Attributes
	for k, v := range raw {
		setter, ok := recognizedFields[strings.ToLower(k)]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		setter(&a, s)
	}
	return a
}

func (a Attributes) sortKey() string {
	return a.Period + "\x00" + a.Hotel + "\x00" + a.Room
}

// Fingerprint computes K from a non-empty sequence of attribute records. It
// returns ("", false) for empty input, or input in which no record carries a
// recognized field, signaling the caller to short-circuit without touching
// the cache.
func Fingerprint(attrs []RawAttributes) (string, bool) {
	if len(attrs) == 0 {
		return "", false
	}

	canon := make([]Attributes, 0, len(attrs))
	recognized := false
	for _, raw := range attrs {
		a := canonicalize(raw)
		if a != (Attributes{}) {
			recognized = true
		}
		canon = append(canon, a)
	}
	if !recognized {
		return "", false
	}

	sort.SliceStable(canon, func(i, j int) bool {
		return canon[i].sortKey() < canon[j].sortKey()
	})

	serialized, err := json.Marshal(canon)
	if err != nil {
		// Attributes is a fixed struct of strings; Marshal cannot fail here.
		return "", false
	}

	sum := sha256.Sum256(serialized)
	return Namespace + hex.EncodeToString(sum[:]), true
}
