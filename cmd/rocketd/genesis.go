package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rocket/config"
	coreerrors "rocket/core/errors"
	"rocket/core/events"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/native/items"
	"rocket/native/permissions"
	"rocket/native/rocket"
	"rocket/native/token"
	"rocket/state"
)

// node bundles the modules sharing one state manager.
type node struct {
	state       *state.Manager
	items       *items.Registry
	permissions *permissions.Controller
	tokens      *token.Ledger
	pools       *rocket.Engine
}

func newNode(st *state.Manager, accts config.Accounts) *node {
	reg := items.New(st, accts.Items)
	ctrl := permissions.New(st, accts.Permissions, permissions.NewRegistries(reg))
	ledger := token.New(st)
	engine := rocket.New(st, accts.Vault, ledger)
	engine.SetAccess(ctrl)
	return &node{state: st, items: reg, permissions: ctrl, tokens: ledger, pools: engine}
}

// setEmitter routes the events of every module to emitter.
func (n *node) setEmitter(emitter events.Emitter) {
	n.items.SetEmitter(emitter)
	n.permissions.SetEmitter(emitter)
	n.tokens.SetEmitter(emitter)
	n.pools.SetEmitter(emitter)
}

func (n *node) setPauses(p common.PauseView) {
	n.items.SetPauses(p)
	n.permissions.SetPauses(p)
	n.tokens.SetPauses(p)
	n.pools.SetPauses(p)
}

// applyGenesis initializes every module and seeds the configured tokens and
// tiers in a single transaction. It reports false when the store was already
// initialized by an earlier start.
func (n *node) applyGenesis(ctx context.Context, cfg *config.Config, accts config.Accounts) (bool, error) {
	err := n.state.Update(ctx, func(ctx context.Context, _ *state.Tx) error {
		if err := n.items.Initialize(ctx, accts.Admin); err != nil {
			return err
		}
		if err := n.items.SetAdmin(ctx, accts.Admin, accts.Permissions); err != nil {
			return fmt.Errorf("grant items admin to permissions: %w", err)
		}
		if err := n.permissions.Initialize(ctx, accts.Items, accts.Admin); err != nil {
			return err
		}
		if err := n.permissions.SetPermissionsAdmin(ctx, accts.Admin, accts.Admin); err != nil {
			return err
		}
		if err := n.pools.Initialize(ctx, rocket.Genesis{
			Permissions:  accts.Permissions,
			DefaultAdmin: accts.Admin,
			RocketAdmin:  accts.RocketAdmin,
			FeeReceiver:  accts.FeeReceiver,
			FeeBps:       *cfg.Rocket.FeeBps,
		}); err != nil {
			return err
		}
		for _, tok := range cfg.Genesis.Tokens {
			if err := n.seedToken(ctx, tok, accts.Admin); err != nil {
				return fmt.Errorf("genesis token %s: %w", tok.Symbol, err)
			}
		}
		for _, tier := range cfg.Genesis.Tiers {
			if err := n.seedTier(ctx, tier, accts.Admin); err != nil {
				return fmt.Errorf("genesis tier %d: %w", tier.ID, err)
			}
		}
		return nil
	})
	if errors.Is(err, coreerrors.ErrAlreadyInitialized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (n *node) seedToken(ctx context.Context, tok config.TokenGenesis, admin [20]byte) error {
	addr, err := crypto.ParseAccount(tok.Address)
	if err != nil {
		return err
	}
	minter := admin
	if strings.TrimSpace(tok.Minter) != "" {
		if minter, err = crypto.ParseAccount(tok.Minter); err != nil {
			return err
		}
	}
	if err := n.tokens.Register(ctx, addr, tok.Symbol, tok.Decimals, minter); err != nil {
		return err
	}
	for holder, raw := range tok.Balances {
		to, err := crypto.ParseAccount(holder)
		if err != nil {
			return err
		}
		amount, err := config.ParseAmount("balance", raw)
		if err != nil {
			return err
		}
		if err := n.tokens.Mint(ctx, minter, addr, to, amount); err != nil {
			return err
		}
	}
	return nil
}

func (n *node) seedTier(ctx context.Context, tier config.TierGenesis, admin [20]byte) error {
	if err := n.permissions.CreateTier(ctx, admin, tier.ID, tier.Label); err != nil {
		return err
	}
	if len(tier.Members) == 0 {
		return nil
	}
	members := make([][20]byte, 0, len(tier.Members))
	for _, raw := range tier.Members {
		acct, err := crypto.ParseAccount(raw)
		if err != nil {
			return err
		}
		members = append(members, acct)
	}
	return n.permissions.AssignTier(ctx, admin, members, tier.ID)
}
