// Package delta computes which trades of the current run are new.
package delta

import (
	"github.com/Checker-Finance/capitol-watch/internal/identity"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// New returns the trades of current whose fingerprint is absent from previous,
// in current order. An empty previous set means there is no baseline, so every
// current trade is new. Duplicates inside current are not collapsed.
func New(current, previous []model.Trade) []model.Trade {
	if len(previous) == 0 {
		return current
	}

	seen := identity.NewSet(previous)
	fresh := make([]model.Trade, 0, len(current))
	for _, t := range current {
		if !seen.Contains(t) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
