// Package identity derives stable fingerprints for trade records.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

const delimiter = "|"

// Fingerprint returns a fixed-length hex digest of the identity-forming fields
// of a trade: politician, ticker, traded date, type, size and price.
// It is a set-membership key, not a security credential.
func Fingerprint(t model.Trade) string {
	key := strings.Join([]string{
		t.Politician,
		t.Ticker,
		t.Traded,
		t.Type,
		t.Size,
		t.Price,
	}, delimiter)

	digest := xxhash.New()
	_, _ = digest.WriteString(key)

	return hex.EncodeToString(digest.Sum(nil))
}

// Set is a membership index of fingerprints.
type Set map[string]struct{}

// NewSet indexes the fingerprints of trades.
func NewSet(trades []model.Trade) Set {
	s := make(Set, len(trades))
	for _, t := range trades {
		s[Fingerprint(t)] = struct{}{}
	}
	return s
}

// Contains reports whether a trade with the same identity is in the set.
func (s Set) Contains(t model.Trade) bool {
	_, ok := s[Fingerprint(t)]
	return ok
}
