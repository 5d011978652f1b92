package events

import (
	"math/big"

	"rocket/core/types"
)

const (
	TypeTokenTransfer = "token.transfer"
	TypeTokenApproval = "token.approval"
)

// TokenTransfer captures a balance movement on the fungible token ledger.
type TokenTransfer struct {
	Token  [20]byte
	Symbol string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType implements the Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event renders the attribute payload.
func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"token":  formatAccount(e.Token),
		"symbol": normalizeAsset(e.Symbol),
		"from":   formatAccount(e.From),
		"to":     formatAccount(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// TokenApproval captures an allowance update.
type TokenApproval struct {
	Token   [20]byte
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

// EventType implements the Event interface.
func (TokenApproval) EventType() string { return TypeTokenApproval }

// Event renders the attribute payload.
func (e TokenApproval) Event() *types.Event {
	return &types.Event{Type: TypeTokenApproval, Attributes: map[string]string{
		"token":   formatAccount(e.Token),
		"owner":   formatAccount(e.Owner),
		"spender": formatAccount(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}
