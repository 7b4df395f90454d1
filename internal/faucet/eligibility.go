package faucet

import (
	"errors"
	"time"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// Eligibility is the answer to whether a user may claim a faucet right now
type Eligibility struct {
	Allowed bool
	// Reason explains a rejection
	Reason string
	// MinutesRemaining is set while the cooldown is running
	MinutesRemaining *int64
	// Code is the machine readable rejection code, empty when allowed
	Code string
}

// evaluate derives the claim state of (user, faucet) from the claim history.
// Checks run in a fixed order: faucet inactive, token inactive, window, cap, cooldown.
func evaluate(faucet *schema.Faucet, token *schema.Token, summary store.FaucetClaimSummary, now time.Time) error {
	if !faucet.IsActive {
		return domain.NewRewardError(domain.ErrInactiveResource, "faucet is inactive")
	}
	if token == nil || !token.IsActive {
		return domain.NewRewardError(domain.ErrInactiveResource, "faucet token is inactive")
	}

	if err := domain.CheckWindow("faucet", now, faucet.StartDate, faucet.EndDate); err != nil {
		return err
	}

	if faucet.MaxClaimsPerUser != nil && summary.Count >= *faucet.MaxClaimsPerUser {
		return domain.NewRewardError(domain.ErrCapReached, "maximum of %d claims reached", *faucet.MaxClaimsPerUser)
	}

	if summary.LastClaimAt != nil {
		interval := faucet.ClaimInterval()
		elapsed := now.Sub(*summary.LastClaimAt)
		if elapsed < interval {
			minutes := int64(interval/time.Minute) - int64(elapsed/time.Minute)
			return domain.NewCooldownError(minutes)
		}
	}

	return nil
}

func toEligibility(err error) (Eligibility, bool) {
	var rewardErr *domain.RewardError
	if !errors.As(err, &rewardErr) {
		return Eligibility{}, false
	}
	return Eligibility{
		Allowed:          false,
		Reason:           rewardErr.Reason,
		MinutesRemaining: rewardErr.MinutesRemaining,
		Code:             domain.ErrorCode(rewardErr),
	}, true
}
