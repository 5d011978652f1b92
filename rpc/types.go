package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rocket/crypto"
	"rocket/native/permissions"
	"rocket/native/rocket"
	"rocket/native/token"
)

const maxRequestBody = 1 << 20

// Amount is a base-unit integer carried as a decimal string.
type Amount struct{ *big.Int }

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.Int.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a decimal string")
		}
		raw = n.String()
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", raw)
	}
	a.Int = v
	return nil
}

// Value returns the amount or nil when unset.
func (a Amount) Value() *big.Int { return a.Int }

func amountOf(v *big.Int) Amount {
	if v == nil {
		return Amount{big.NewInt(0)}
	}
	return Amount{new(big.Int).Set(v)}
}

// Account is an address accepted as bech32 or 0x hex and rendered as bech32.
type Account [20]byte

func (a Account) MarshalJSON() ([]byte, error) {
	if a == (Account{}) {
		return []byte(`""`), nil
	}
	return json.Marshal(crypto.FormatAccount(a))
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*a = Account{}
		return nil
	}
	addr, err := crypto.ParseAccount(raw)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

func accounts(in []Account) [][20]byte {
	out := make([][20]byte, len(in))
	for i, a := range in {
		out[i] = a
	}
	return out
}

func fromAccounts(in [][20]byte) []Account {
	out := make([]Account, len(in))
	for i, a := range in {
		out[i] = a
	}
	return out
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func accountParam(r *http.Request, name string) ([20]byte, error) {
	raw := chi.URLParam(r, name)
	addr, err := crypto.ParseAccount(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s %q", name, raw)
	}
	return addr, nil
}

type accountsRequest struct {
	Accounts []Account `json:"accounts"`
}

type accountRequest struct {
	Account Account `json:"account"`
}

type itemsRequest struct {
	Account Account  `json:"account"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

type transferItemsRequest struct {
	From    Account  `json:"from"`
	To      Account  `json:"to"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

type tierRequest struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

type registryRequest struct {
	Registry Account `json:"registry"`
}

type accountStatusResponse struct {
	Account   Account `json:"account"`
	Suspended bool    `json:"suspended"`
	Rejected  bool    `json:"rejected"`
	Tier      *uint64 `json:"tier,omitempty"`
	HasItem   *bool   `json:"hasItem,omitempty"`
}

type tierResponse struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

func tierResponses(in []permissions.Tier) []tierResponse {
	out := make([]tierResponse, len(in))
	for i, t := range in {
		out[i] = tierResponse{ID: t.ID, Label: t.Label}
	}
	return out
}

type approveRequest struct {
	Spender Account `json:"spender"`
	Amount  Amount  `json:"amount"`
}

type transferRequest struct {
	To     Account `json:"to"`
	Amount Amount  `json:"amount"`
}

type tokenResponse struct {
	Address  Account `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
	Minter   Account `json:"minter"`
}

func tokenResponseFrom(m token.Metadata) tokenResponse {
	return tokenResponse{Address: m.Address, Symbol: m.Symbol, Decimals: m.Decimals, Minter: m.Minter}
}

type createPoolRequest struct {
	TargetAmount      Amount    `json:"targetAmount"`
	Tokens            []Account `json:"tokens"`
	Receiver          Account   `json:"receiver"`
	Price             Amount    `json:"price"`
	RewardToken       Account   `json:"rewardToken"`
	RewardTokenAmount Amount    `json:"rewardTokenAmount"`
	Expiry            uint64    `json:"expiry"`
}

type contributionScheduleRequest struct {
	Tier      uint64 `json:"tier"`
	MinAmount Amount `json:"minAmount"`
	MaxAmount Amount `json:"maxAmount"`
	Price     Amount `json:"price"`
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
}

type distributionScheduleRequest struct {
	Start        uint64 `json:"start"`
	End          uint64 `json:"end"`
	PeriodLength uint64 `json:"periodLength"`
}

type contributeRequest struct {
	ScheduleID uint64  `json:"scheduleId"`
	Amount     Amount  `json:"amount"`
	Token      Account `json:"token"`
}

type claimRequest struct {
	ScheduleID     uint64 `json:"scheduleId"`
	DistributionID uint64 `json:"distributionId"`
}

type feeRequest struct {
	Receiver *Account `json:"receiver,omitempty"`
	Bps      *uint32  `json:"bps,omitempty"`
}

type idResponse struct {
	ID uint64 `json:"id"`
}

type custodyResponse struct {
	Token  Account `json:"token"`
	Amount Amount  `json:"amount"`
}

type poolResponse struct {
	ID                uint64            `json:"id"`
	Creator           Account           `json:"creator"`
	TargetAmount      Amount            `json:"targetAmount"`
	Tokens            []Account         `json:"tokens"`
	Receiver          Account           `json:"receiver"`
	Price             Amount            `json:"price"`
	RewardToken       Account           `json:"rewardToken"`
	RewardTokenAmount Amount            `json:"rewardTokenAmount"`
	Expiry            uint64            `json:"expiry"`
	CreatedAt         uint64            `json:"createdAt"`
	State             string            `json:"state"`
	Reward            string            `json:"reward"`
	TotalContributed  Amount            `json:"totalContributed"`
	RewardBalance     Amount            `json:"rewardBalance"`
	Custody           []custodyResponse `json:"custody"`
	Schedules         []uint64          `json:"schedules"`
	Distributions     []uint64          `json:"distributions"`
}

func poolResponseFrom(p *rocket.Pool) poolResponse {
	custody := make([]custodyResponse, len(p.Custody))
	for i, c := range p.Custody {
		custody[i] = custodyResponse{Token: c.Token, Amount: amountOf(c.Amount)}
	}
	return poolResponse{
		ID:                p.ID,
		Creator:           p.Creator,
		TargetAmount:      amountOf(p.TargetAmount),
		Tokens:            fromAccounts(p.Tokens),
		Receiver:          p.Receiver,
		Price:             amountOf(p.Price),
		RewardToken:       p.RewardToken,
		RewardTokenAmount: amountOf(p.RewardTokenAmount),
		Expiry:            p.Expiry,
		CreatedAt:         p.CreatedAt,
		State:             p.State.String(),
		Reward:            p.Reward.String(),
		TotalContributed:  amountOf(p.TotalContributed),
		RewardBalance:     amountOf(p.RewardBalance),
		Custody:           custody,
		Schedules:         append([]uint64{}, p.Schedules...),
		Distributions:     append([]uint64{}, p.Distributions...),
	}
}

type scheduleResponse struct {
	ID        uint64 `json:"id"`
	PoolID    uint64 `json:"poolId"`
	Tier      uint64 `json:"tier"`
	MinAmount Amount `json:"minAmount"`
	MaxAmount Amount `json:"maxAmount"`
	Price     Amount `json:"price"`
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
}

type distributionResponse struct {
	ID           uint64 `json:"id"`
	PoolID       uint64 `json:"poolId"`
	Start        uint64 `json:"start"`
	End          uint64 `json:"end"`
	PeriodLength uint64 `json:"periodLength"`
}

type schedulesResponse struct {
	Contribution []scheduleResponse     `json:"contribution"`
	Distribution []distributionResponse `json:"distribution"`
}

type contributionResponse struct {
	ScheduleID        uint64  `json:"scheduleId"`
	Contributor       Account `json:"contributor"`
	AmountContributed Amount  `json:"amountContributed"`
	AmountToReceive   Amount  `json:"amountToReceive"`
	Claimed           bool    `json:"claimed"`
	Vested            *Amount `json:"vested,omitempty"`
}

type claimResponse struct {
	Amount Amount `json:"amount"`
}

type configResponse struct {
	Permissions Account `json:"permissions"`
	FeeReceiver Account `json:"feeReceiver"`
	FeeBps      uint32  `json:"feeBps"`
}
