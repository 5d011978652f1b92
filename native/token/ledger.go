package token

import (
	"context"
	"math/big"
	"strings"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/state"
)

const moduleName = "token"

var keyTokenIndex = state.Key("token/index")

func metaKey(token [20]byte) []byte { return state.Key("token/meta", token[:]) }

func supplyKey(token [20]byte) []byte { return state.Key("token/supply", token[:]) }

func balanceKey(token, account [20]byte) []byte {
	return state.Key("token/balance", token[:], account[:])
}

func allowanceKey(token, owner, spender [20]byte) []byte {
	return state.Key("token/allowance", token[:], owner[:], spender[:])
}

// Metadata describes a registered fungible token.
type Metadata struct {
	Address  [20]byte
	Symbol   string
	Decimals uint8
	Minter   [20]byte
}

// Ledger is an allowance-based fungible token ledger kept in the shared state.
// Movements join the caller's transaction, so they commit or roll back with
// the operation that requested them.
type Ledger struct {
	st      *state.Manager
	emitter events.Emitter
	pauses  common.PauseView
}

// New returns a ledger bound to st.
func New(st *state.Manager) *Ledger {
	return &Ledger{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses wires the operator pause switch.
func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

func (l *Ledger) emit(tx *state.Tx, evt events.Event) {
	emitter := l.emitter
	tx.OnCommit(func() { emitter.Emit(evt) })
}

// Register adds a token. Only minter may later create supply.
func (l *Ledger) Register(ctx context.Context, token [20]byte, symbol string, decimals uint8, minter [20]byte) error {
	const op = "token: register"
	if token == ([20]byte{}) || minter == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "token and minter must be set")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "symbol required")
	}
	return l.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		exists, err := tx.Get(metaKey(token), nil)
		if err != nil {
			return err
		}
		if exists {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "token already registered").WithAccount(crypto.FormatAccount(token))
		}
		meta := &Metadata{Address: token, Symbol: symbol, Decimals: decimals, Minter: minter}
		if err := tx.Put(metaKey(token), meta); err != nil {
			return err
		}
		var index [][20]byte
		if _, err := tx.Get(keyTokenIndex, &index); err != nil {
			return err
		}
		return tx.Put(keyTokenIndex, append(index, token))
	})
}

// Mint creates amount new units for to. Only the token's minter may mint.
func (l *Ledger) Mint(ctx context.Context, caller, token, to [20]byte, amount *big.Int) error {
	const op = "token: mint"
	if err := l.precheck(op, to, amount); err != nil {
		return err
	}
	return l.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		meta, err := l.metadata(tx, op, token)
		if err != nil {
			return err
		}
		if meta.Minter != caller {
			return coreerrors.New(coreerrors.ErrUnauthorized, op, "caller is not the token minter").WithAccount(crypto.FormatAccount(caller))
		}
		supply, err := l.amount(tx, supplyKey(token))
		if err != nil {
			return err
		}
		next, err := common.CheckedAdd(op, supply, amount)
		if err != nil {
			return err
		}
		if err := tx.Put(supplyKey(token), next); err != nil {
			return err
		}
		if err := l.credit(tx, op, token, to, amount); err != nil {
			return err
		}
		l.emit(tx, events.TokenTransfer{Token: token, Symbol: meta.Symbol, To: to, Amount: common.CloneBig(amount)})
		return nil
	})
}

// Approve sets the allowance spender may draw from owner.
func (l *Ledger) Approve(ctx context.Context, token, owner, spender [20]byte, amount *big.Int) error {
	const op = "token: approve"
	if err := l.precheck(op, spender, amount); err != nil {
		return err
	}
	return l.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if _, err := l.metadata(tx, op, token); err != nil {
			return err
		}
		if err := tx.Put(allowanceKey(token, owner, spender), common.CloneBig(amount)); err != nil {
			return err
		}
		l.emit(tx, events.TokenApproval{Token: token, Owner: owner, Spender: spender, Amount: common.CloneBig(amount)})
		return nil
	})
}

// Transfer moves amount from sender to to.
func (l *Ledger) Transfer(ctx context.Context, token, sender, to [20]byte, amount *big.Int) (bool, error) {
	const op = "token: transfer"
	if err := l.precheck(op, to, amount); err != nil {
		return false, err
	}
	err := l.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		return l.move(tx, op, token, sender, to, amount)
	})
	return err == nil, err
}

// TransferFrom moves amount from from to to, drawing down the allowance that
// from granted to spender.
func (l *Ledger) TransferFrom(ctx context.Context, token, spender, from, to [20]byte, amount *big.Int) (bool, error) {
	const op = "token: transfer from"
	if err := l.precheck(op, to, amount); err != nil {
		return false, err
	}
	err := l.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		allowance, err := l.amount(tx, allowanceKey(token, from, spender))
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return coreerrors.New(coreerrors.ErrInsufficientAllowance, op, "").WithAccount(crypto.FormatAccount(from))
		}
		if err := tx.Put(allowanceKey(token, from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
		return l.move(tx, op, token, from, to, amount)
	})
	return err == nil, err
}

func (l *Ledger) precheck(op string, to [20]byte, amount *big.Int) error {
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "recipient is the zero address")
	}
	return common.CheckAmount(op, "amount", amount)
}

func (l *Ledger) move(tx *state.Tx, op string, token, from, to [20]byte, amount *big.Int) error {
	meta, err := l.metadata(tx, op, token)
	if err != nil {
		return err
	}
	balance, err := l.amount(tx, balanceKey(token, from))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return coreerrors.New(coreerrors.ErrInsufficientBalance, op, "").WithAccount(crypto.FormatAccount(from))
	}
	if err := tx.Put(balanceKey(token, from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.credit(tx, op, token, to, amount); err != nil {
		return err
	}
	l.emit(tx, events.TokenTransfer{Token: token, Symbol: meta.Symbol, From: from, To: to, Amount: common.CloneBig(amount)})
	return nil
}

func (l *Ledger) credit(tx *state.Tx, op string, token, to [20]byte, amount *big.Int) error {
	balance, err := l.amount(tx, balanceKey(token, to))
	if err != nil {
		return err
	}
	next, err := common.CheckedAdd(op, balance, amount)
	if err != nil {
		return err
	}
	return tx.Put(balanceKey(token, to), next)
}

func (l *Ledger) metadata(tx *state.Tx, op string, token [20]byte) (*Metadata, error) {
	var meta Metadata
	ok, err := tx.Get(metaKey(token), &meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "unknown token").WithAccount(crypto.FormatAccount(token))
	}
	return &meta, nil
}

func (l *Ledger) amount(tx *state.Tx, key []byte) (*big.Int, error) {
	v := new(big.Int)
	if _, err := tx.Get(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// BalanceOf returns the balance of account in token.
func (l *Ledger) BalanceOf(ctx context.Context, token, account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = l.amount(tx, balanceKey(token, account))
		return err
	})
	return out, err
}

// Allowance returns what spender may still draw from owner.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = l.amount(tx, allowanceKey(token, owner, spender))
		return err
	})
	return out, err
}

// TotalSupply returns the minted supply of token.
func (l *Ledger) TotalSupply(ctx context.Context, token [20]byte) (*big.Int, error) {
	var out *big.Int
	err := l.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = l.amount(tx, supplyKey(token))
		return err
	})
	return out, err
}

// Metadata returns the registration record of token.
func (l *Ledger) Metadata(ctx context.Context, token [20]byte) (*Metadata, error) {
	var out *Metadata
	err := l.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = l.metadata(tx, "token: metadata", token)
		return err
	})
	return out, err
}

// Tokens lists every registered token in registration order.
func (l *Ledger) Tokens(ctx context.Context) ([]Metadata, error) {
	var out []Metadata
	err := l.st.View(ctx, func(tx *state.Tx) error {
		var index [][20]byte
		if _, err := tx.Get(keyTokenIndex, &index); err != nil {
			return err
		}
		out = make([]Metadata, 0, len(index))
		for _, token := range index {
			meta, err := l.metadata(tx, "token: list", token)
			if err != nil {
				return err
			}
			out = append(out, *meta)
		}
		return nil
	})
	return out, err
}
