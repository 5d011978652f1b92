package events

import "rocket/core/types"

const (
	// TypeItemsMinted is emitted when capability items are minted to an account.
	TypeItemsMinted = "items.minted"
	// TypeItemsBurned is emitted when capability items are burned from an account.
	TypeItemsBurned = "items.burned"
	// TypeItemsAdminGranted is emitted when an account receives mint and burn rights.
	TypeItemsAdminGranted = "items.admin_granted"
	// TypeItemsAdminRevoked is emitted when mint and burn rights are withdrawn.
	TypeItemsAdminRevoked = "items.admin_revoked"
)

// ItemsMinted captures a (batch) mint on a capability registry.
type ItemsMinted struct {
	Registry [20]byte
	Operator [20]byte
	Account  [20]byte
	IDs      []uint64
	Amounts  []uint64
}

// EventType implements the Event interface.
func (ItemsMinted) EventType() string { return TypeItemsMinted }

// Event renders the attribute payload.
func (e ItemsMinted) Event() *types.Event {
	return itemsMovement(TypeItemsMinted, e.Registry, e.Operator, e.Account, e.IDs, e.Amounts)
}

// ItemsBurned captures a (batch) burn on a capability registry.
type ItemsBurned struct {
	Registry [20]byte
	Operator [20]byte
	Account  [20]byte
	IDs      []uint64
	Amounts  []uint64
}

// EventType implements the Event interface.
func (ItemsBurned) EventType() string { return TypeItemsBurned }

// Event renders the attribute payload.
func (e ItemsBurned) Event() *types.Event {
	return itemsMovement(TypeItemsBurned, e.Registry, e.Operator, e.Account, e.IDs, e.Amounts)
}

// ItemsAdminChanged captures a grant or revocation of registry admin rights.
type ItemsAdminChanged struct {
	Registry [20]byte
	Account  [20]byte
	Granted  bool
}

// EventType implements the Event interface.
func (e ItemsAdminChanged) EventType() string {
	if e.Granted {
		return TypeItemsAdminGranted
	}
	return TypeItemsAdminRevoked
}

// Event renders the attribute payload.
func (e ItemsAdminChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"registry": formatAccount(e.Registry),
		"account":  formatAccount(e.Account),
	}}
}

func itemsMovement(eventType string, registry, operator, account [20]byte, ids, amounts []uint64) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"registry": formatAccount(registry),
		"operator": formatAccount(operator),
		"account":  formatAccount(account),
		"ids":      formatIDs(ids),
		"amounts":  formatIDs(amounts),
	}}
}
