// This file contains the user permission policy and the daily spending ledger.
package models

import (
	"time"

	"github.com/chainvault/walletgate/pkg/constants"
)

// UserPermissions is the per-user execution policy checked before any challenge
// is created. The zero AllowedChains slice means every supported chain.
type UserPermissions struct {
	// MaxDailyExecutionAmount caps the sum of authorized executions per UTC day.
	MaxDailyExecutionAmount float64 `json:"max_daily_execution_amount"`

	// AllowedChains restricts which chains may authorize executions. Empty
	// means no restriction.
	AllowedChains []constants.ChainID `json:"allowed_chains,omitempty"`
}

// DefaultUserPermissions returns the policy applied when none is stored.
func DefaultUserPermissions() *UserPermissions {
	return &UserPermissions{
		MaxDailyExecutionAmount: constants.DefaultMaxDailyExecution,
	}
}

// IsChainAllowed reports whether the policy permits the chain.
func (p *UserPermissions) IsChainAllowed(chain constants.ChainID) bool {
	if len(p.AllowedChains) == 0 {
		return true
	}
	for _, c := range p.AllowedChains {
		if c == chain {
			return true
		}
	}
	return false
}

// SpendingLedger accumulates authorized execution amounts per UTC day. It is
// persisted as one secure-store record and pruned as days roll over.
type SpendingLedger struct {
	// Totals maps "2006-01-02" UTC day keys to authorized USD totals.
	Totals map[string]float64 `json:"totals"`
}

// NewSpendingLedger creates an empty ledger.
func NewSpendingLedger() *SpendingLedger {
	return &SpendingLedger{Totals: make(map[string]float64)}
}

// dayKey formats the UTC day bucket for a time.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Add records an authorized amount against the day of now.
func (l *SpendingLedger) Add(now time.Time, amount float64) {
	if l.Totals == nil {
		l.Totals = make(map[string]float64)
	}
	l.Totals[dayKey(now)] += amount
}

// SpentOn returns the total authorized on the day of now.
func (l *SpendingLedger) SpentOn(now time.Time) float64 {
	if l.Totals == nil {
		return 0
	}
	return l.Totals[dayKey(now)]
}

// Prune drops day buckets older than keepDays before now and reports
// how many were dropped.
func (l *SpendingLedger) Prune(now time.Time, keepDays int) int {
	if l.Totals == nil {
		return 0
	}
	cutoff := dayKey(now.AddDate(0, 0, -keepDays))
	removed := 0
	for day := range l.Totals {
		if day < cutoff {
			delete(l.Totals, day)
			removed++
		}
	}
	return removed
}
