package events

import (
	"math/big"

	"rocket/core/types"
)

const (
	TypePoolCreated                 = "rocket.pool_created"
	TypeContributionScheduleCreated = "rocket.contribution_schedule_created"
	TypeDistributionScheduleCreated = "rocket.distribution_schedule_created"
	TypeContributed                 = "rocket.contributed"
	TypePoolTargetCompleted         = "rocket.pool_target_completed"
	TypePoolFundsWithdrawn          = "rocket.funds_withdrawn"
	TypePoolRewardDeposited         = "rocket.reward_deposited"
	TypePoolRewardClaimed           = "rocket.reward_claimed"
)

// PoolCreated captures the parameters of a new funding pool.
type PoolCreated struct {
	PoolID            uint64
	Creator           [20]byte
	TargetAmount      *big.Int
	Tokens            [][20]byte
	Receiver          [20]byte
	Price             *big.Int
	RewardToken       [20]byte
	RewardTokenAmount *big.Int
	Expiry            uint64
}

// EventType implements the Event interface.
func (PoolCreated) EventType() string { return TypePoolCreated }

// Event renders the attribute payload.
func (e PoolCreated) Event() *types.Event {
	attrs := map[string]string{
		"pool":         u64(e.PoolID),
		"creator":      formatAccount(e.Creator),
		"target":       formatAmount(e.TargetAmount),
		"tokens":       formatAccounts(e.Tokens),
		"receiver":     formatAccount(e.Receiver),
		"price":        formatAmount(e.Price),
		"rewardAmount": formatAmount(e.RewardTokenAmount),
		"expiry":       u64(e.Expiry),
	}
	if e.RewardToken != ([20]byte{}) {
		attrs["rewardToken"] = formatAccount(e.RewardToken)
	}
	return &types.Event{Type: TypePoolCreated, Attributes: attrs}
}

// ContributionScheduleCreated captures a new contribution window.
type ContributionScheduleCreated struct {
	PoolID     uint64
	ScheduleID uint64
	Tier       uint64
	MinAmount  *big.Int
	MaxAmount  *big.Int
	Price      *big.Int
	Start      uint64
	End        uint64
}

// EventType implements the Event interface.
func (ContributionScheduleCreated) EventType() string { return TypeContributionScheduleCreated }

// Event renders the attribute payload.
func (e ContributionScheduleCreated) Event() *types.Event {
	return &types.Event{Type: TypeContributionScheduleCreated, Attributes: map[string]string{
		"pool":     u64(e.PoolID),
		"schedule": u64(e.ScheduleID),
		"tier":     u64(e.Tier),
		"min":      formatAmount(e.MinAmount),
		"max":      formatAmount(e.MaxAmount),
		"price":    formatAmount(e.Price),
		"start":    u64(e.Start),
		"end":      u64(e.End),
	}}
}

// DistributionScheduleCreated captures a new reward distribution window.
type DistributionScheduleCreated struct {
	PoolID         uint64
	DistributionID uint64
	Start          uint64
	End            uint64
	PeriodLength   uint64
}

// EventType implements the Event interface.
func (DistributionScheduleCreated) EventType() string { return TypeDistributionScheduleCreated }

// Event renders the attribute payload.
func (e DistributionScheduleCreated) Event() *types.Event {
	return &types.Event{Type: TypeDistributionScheduleCreated, Attributes: map[string]string{
		"pool":         u64(e.PoolID),
		"distribution": u64(e.DistributionID),
		"start":        u64(e.Start),
		"end":          u64(e.End),
		"period":       u64(e.PeriodLength),
	}}
}

// Contributed captures one accepted contribution and the running totals it
// produced.
type Contributed struct {
	PoolID            uint64
	ScheduleID        uint64
	Contributor       [20]byte
	Token             [20]byte
	Amount            *big.Int
	Fee               *big.Int
	AmountContributed *big.Int
	AmountToReceive   *big.Int
	TotalContributed  *big.Int
}

// EventType implements the Event interface.
func (Contributed) EventType() string { return TypeContributed }

// Event renders the attribute payload.
func (e Contributed) Event() *types.Event {
	return &types.Event{Type: TypeContributed, Attributes: map[string]string{
		"pool":              u64(e.PoolID),
		"schedule":          u64(e.ScheduleID),
		"contributor":       formatAccount(e.Contributor),
		"token":             formatAccount(e.Token),
		"amount":            formatAmount(e.Amount),
		"fee":               formatAmount(e.Fee),
		"amountContributed": formatAmount(e.AmountContributed),
		"amountToReceive":   formatAmount(e.AmountToReceive),
		"totalContributed":  formatAmount(e.TotalContributed),
	}}
}

// PoolTargetCompleted is emitted once, when cumulative contributions reach the
// pool target.
type PoolTargetCompleted struct {
	PoolID           uint64
	TotalContributed *big.Int
}

// EventType implements the Event interface.
func (PoolTargetCompleted) EventType() string { return TypePoolTargetCompleted }

// Event renders the attribute payload.
func (e PoolTargetCompleted) Event() *types.Event {
	return &types.Event{Type: TypePoolTargetCompleted, Attributes: map[string]string{
		"pool":             u64(e.PoolID),
		"totalContributed": formatAmount(e.TotalContributed),
	}}
}

// PoolFundsWithdrawn captures the release of a pool's custody in one token to
// its receiver.
type PoolFundsWithdrawn struct {
	PoolID   uint64
	Receiver [20]byte
	Token    [20]byte
	Amount   *big.Int
}

// EventType implements the Event interface.
func (PoolFundsWithdrawn) EventType() string { return TypePoolFundsWithdrawn }

// Event renders the attribute payload.
func (e PoolFundsWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypePoolFundsWithdrawn, Attributes: map[string]string{
		"pool":     u64(e.PoolID),
		"receiver": formatAccount(e.Receiver),
		"token":    formatAccount(e.Token),
		"amount":   formatAmount(e.Amount),
	}}
}

// PoolRewardDeposited captures the funding of a pool's reward custody.
type PoolRewardDeposited struct {
	PoolID    uint64
	Depositor [20]byte
	Token     [20]byte
	Amount    *big.Int
}

// EventType implements the Event interface.
func (PoolRewardDeposited) EventType() string { return TypePoolRewardDeposited }

// Event renders the attribute payload.
func (e PoolRewardDeposited) Event() *types.Event {
	return &types.Event{Type: TypePoolRewardDeposited, Attributes: map[string]string{
		"pool":      u64(e.PoolID),
		"depositor": formatAccount(e.Depositor),
		"token":     formatAccount(e.Token),
		"amount":    formatAmount(e.Amount),
	}}
}

// PoolRewardClaimed captures a contributor's one-time reward claim.
type PoolRewardClaimed struct {
	PoolID         uint64
	ScheduleID     uint64
	DistributionID uint64
	Account        [20]byte
	Token          [20]byte
	Amount         *big.Int
}

// EventType implements the Event interface.
func (PoolRewardClaimed) EventType() string { return TypePoolRewardClaimed }

// Event renders the attribute payload.
func (e PoolRewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypePoolRewardClaimed, Attributes: map[string]string{
		"pool":         u64(e.PoolID),
		"schedule":     u64(e.ScheduleID),
		"distribution": u64(e.DistributionID),
		"account":      formatAccount(e.Account),
		"token":        formatAccount(e.Token),
		"amount":       formatAmount(e.Amount),
	}}
}
