package rocket

import (
	"math/big"

	"rocket/native/common"
)

// PoolState tracks the funding lifecycle of a pool.
type PoolState uint8

const (
	PoolOpen PoolState = iota + 1
	PoolTargetReached
	PoolWithdrawn
)

func (s PoolState) String() string {
	switch s {
	case PoolOpen:
		return "open"
	case PoolTargetReached:
		return "target_reached"
	case PoolWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// RewardState tracks whether the pool's reward tokens have been deposited.
type RewardState uint8

const (
	RewardUnfunded RewardState = iota
	RewardFunded
)

func (s RewardState) String() string {
	if s == RewardFunded {
		return "funded"
	}
	return "unfunded"
}

// Custody is the net amount of one accepted token held for a pool.
type Custody struct {
	Token  [20]byte
	Amount *big.Int
}

// PoolParams carries the creation parameters of a pool.
type PoolParams struct {
	TargetAmount      *big.Int
	Tokens            [][20]byte
	Receiver          [20]byte
	Price             *big.Int
	RewardToken       [20]byte
	RewardTokenAmount *big.Int
	// Expiry is a unix timestamp after which contributions stop; zero never
	// expires.
	Expiry uint64
}

// Pool is a fundraising target with its running totals.
type Pool struct {
	ID                uint64
	Creator           [20]byte
	TargetAmount      *big.Int
	Tokens            [][20]byte
	Receiver          [20]byte
	Price             *big.Int
	RewardToken       [20]byte
	RewardTokenAmount *big.Int
	Expiry            uint64
	CreatedAt         uint64
	State             PoolState
	Reward            RewardState
	TotalContributed  *big.Int
	RewardBalance     *big.Int
	Custody           []Custody
	Schedules         []uint64
	Distributions     []uint64
}

// HasReward reports whether the pool was created with a reward token.
func (p *Pool) HasReward() bool {
	return p.RewardToken != ([20]byte{}) && p.RewardTokenAmount != nil && p.RewardTokenAmount.Sign() > 0
}

// Accepts reports whether token is in the pool's accepted set.
func (p *Pool) Accepts(token [20]byte) bool {
	for _, t := range p.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// CustodyOf returns the net amount of token held for the pool.
func (p *Pool) CustodyOf(token [20]byte) *big.Int {
	for _, c := range p.Custody {
		if c.Token == token {
			return common.CloneBig(c.Amount)
		}
	}
	return big.NewInt(0)
}

func (p *Pool) addCustody(token [20]byte, amount *big.Int) {
	for i := range p.Custody {
		if p.Custody[i].Token == token {
			p.Custody[i].Amount = new(big.Int).Add(common.CloneBig(p.Custody[i].Amount), amount)
			return
		}
	}
	p.Custody = append(p.Custody, Custody{Token: token, Amount: common.CloneBig(amount)})
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	out.TargetAmount = common.CloneBig(p.TargetAmount)
	out.Price = common.CloneBig(p.Price)
	out.RewardTokenAmount = common.CloneBig(p.RewardTokenAmount)
	out.TotalContributed = common.CloneBig(p.TotalContributed)
	out.RewardBalance = common.CloneBig(p.RewardBalance)
	out.Tokens = append([][20]byte(nil), p.Tokens...)
	out.Schedules = append([]uint64(nil), p.Schedules...)
	out.Distributions = append([]uint64(nil), p.Distributions...)
	out.Custody = make([]Custody, len(p.Custody))
	for i, c := range p.Custody {
		out.Custody[i] = Custody{Token: c.Token, Amount: common.CloneBig(c.Amount)}
	}
	return &out
}

// ContributionSchedule is a tier-gated window with per-contribution bounds.
type ContributionSchedule struct {
	ID        uint64
	PoolID    uint64
	Tier      uint64
	MinAmount *big.Int
	MaxAmount *big.Int
	Price     *big.Int
	Start     uint64
	End       uint64
}

// Open reports whether now falls inside the inclusive window.
func (s *ContributionSchedule) Open(now uint64) bool {
	return now >= s.Start && now <= s.End
}

// DistributionSchedule describes when pool rewards become claimable.
type DistributionSchedule struct {
	ID           uint64
	PoolID       uint64
	Start        uint64
	End          uint64
	PeriodLength uint64
}

// Vested returns the share of amount released at now, stepping once per
// elapsed period and releasing everything from End onwards.
func (d *DistributionSchedule) Vested(amount *big.Int, now uint64) *big.Int {
	if amount == nil || now < d.Start {
		return big.NewInt(0)
	}
	if now >= d.End || d.End == d.Start || d.PeriodLength == 0 {
		return common.CloneBig(amount)
	}
	span := d.End - d.Start
	total := (span + d.PeriodLength - 1) / d.PeriodLength
	elapsed := (now - d.Start) / d.PeriodLength
	if elapsed >= total {
		return common.CloneBig(amount)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(elapsed))
	return out.Quo(out, new(big.Int).SetUint64(total))
}

// Contribution is a contributor's running position within one schedule.
type Contribution struct {
	ScheduleID        uint64
	Contributor       [20]byte
	AmountContributed *big.Int
	AmountToReceive   *big.Int
	Claimed           bool
}

// Clone returns a deep copy of the contribution.
func (c *Contribution) Clone() *Contribution {
	if c == nil {
		return nil
	}
	out := *c
	out.AmountContributed = common.CloneBig(c.AmountContributed)
	out.AmountToReceive = common.CloneBig(c.AmountToReceive)
	return &out
}

// Genesis carries the one-time initialization parameters of the engine.
type Genesis struct {
	Permissions  [20]byte
	DefaultAdmin [20]byte
	RocketAdmin  [20]byte
	FeeReceiver  [20]byte
	FeeBps       uint32
}

// Config is the mutable engine configuration. Permissions names the access
// controller that contributions are checked against.
type Config struct {
	Permissions [20]byte
	FeeReceiver [20]byte
	FeeBps      uint32
}

// RewardFor computes the reward owed for a cumulative contribution:
// reward * contributed / target, truncated.
func RewardFor(rewardAmount, contributed, target *big.Int) *big.Int {
	if rewardAmount == nil || contributed == nil || target == nil || target.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(rewardAmount, contributed)
	return out.Quo(out, target)
}

// FeeFor returns the protocol fee on amount at bps basis points, truncated.
func FeeFor(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return out.Quo(out, big.NewInt(10_000))
}
