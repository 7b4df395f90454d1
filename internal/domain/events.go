package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardEventType is the type of an event published after a committed reward operation
type RewardEventType string

const (
	RewardEventFaucetClaimed       RewardEventType = "faucet.claimed"
	RewardEventAirdropClaimed      RewardEventType = "airdrop.claimed"
	RewardEventAirdropDistributed  RewardEventType = "airdrop.distributed"
	RewardEventLedgerEntryRecorded RewardEventType = "ledger.entry_recorded"
)

// RewardEvent describes a committed grant or ledger adjustment
type RewardEvent struct {
	EventID    string          `json:"event_id"`
	Type       RewardEventType `json:"type"`
	UserID     string          `json:"user_id"`
	TokenID    string          `json:"token_id"`
	ResourceID string          `json:"resource_id,omitempty"` // faucet, airdrop or transaction id
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
