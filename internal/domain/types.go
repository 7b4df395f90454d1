package domain

import (
	"strings"
	"time"
)

// TransactionKind is the kind of a ledger entry
type TransactionKind string

const (
	TransactionKindDeposit       TransactionKind = "deposit"
	TransactionKindWithdrawal    TransactionKind = "withdrawal"
	TransactionKindFaucet        TransactionKind = "faucet"
	TransactionKindAirdrop       TransactionKind = "airdrop"
	TransactionKindReferralBonus TransactionKind = "referral_bonus"
	TransactionKindAdjustment    TransactionKind = "adjustment"
)

// Valid reports whether the kind is one of the known ledger entry kinds
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit,
		TransactionKindWithdrawal,
		TransactionKindFaucet,
		TransactionKindAirdrop,
		TransactionKindReferralBonus,
		TransactionKindAdjustment:
		return true
	}
	return false
}

// EngineOwned reports whether entries of this kind may only be written by a reward engine
func (k TransactionKind) EngineOwned() bool {
	return k == TransactionKindFaucet || k == TransactionKindAirdrop
}

// AirdropType distinguishes self-claimed airdrops from administrator distributions
type AirdropType string

const (
	// AirdropTypeClaim is claimed by end users themselves
	AirdropTypeClaim AirdropType = "claim"
	// AirdropTypeDistribution is pushed by an administrator to a list of users
	AirdropTypeDistribution AirdropType = "distribution"
)

// Valid reports whether the airdrop type is known
func (t AirdropType) Valid() bool {
	return t == AirdropTypeClaim || t == AirdropTypeDistribution
}

// NormalizeSymbol trims and uppercases a token symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// WithinWindow reports whether t falls inside the closed interval [start, end].
// A nil bound is open on that side.
func WithinWindow(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

// CheckWindow returns a window_closed error naming the bound that now falls outside of.
// resource names the faucet or airdrop in the message.
func CheckWindow(resource string, now time.Time, start, end *time.Time) error {
	if WithinWindow(now, start, end) {
		return nil
	}
	if start != nil && now.Before(*start) {
		return NewRewardError(ErrWindowClosed, "%s opens at %s", resource, start.UTC().Format(time.RFC3339))
	}
	return NewRewardError(ErrWindowClosed, "%s closed at %s", resource, end.UTC().Format(time.RFC3339))
}
