package events

import "rocket/core/types"

const (
	TypeTierCreated             = "permissions.tier_created"
	TypeTierAssigned            = "permissions.tier_assigned"
	TypeTierRevoked             = "permissions.tier_revoked"
	TypeItemAssigned            = "permissions.item_assigned"
	TypeItemRemoved             = "permissions.item_removed"
	TypeUserSuspended           = "permissions.user_suspended"
	TypeUserUnsuspended         = "permissions.user_unsuspended"
	TypeUserRejected            = "permissions.user_rejected"
	TypeUserUnrejected          = "permissions.user_unrejected"
	TypePermissionItemsUpdated  = "permissions.items_updated"
	TypePermissionsAdminGranted = "permissions.admin_granted"
	TypePermissionsAdminRevoked = "permissions.admin_revoked"
)

// TierCreated captures a new catalog entry.
type TierCreated struct {
	ID    uint64
	Label string
}

// EventType implements the Event interface.
func (TierCreated) EventType() string { return TypeTierCreated }

// Event renders the attribute payload.
func (e TierCreated) Event() *types.Event {
	return &types.Event{Type: TypeTierCreated, Attributes: map[string]string{
		"tier":  u64(e.ID),
		"label": e.Label,
	}}
}

// TierMembershipChanged captures a batch assignment or removal of a tier or a
// raw item. Type selects which of the four membership events it represents.
type TierMembershipChanged struct {
	Type     string
	Tier     uint64
	Accounts [][20]byte
}

// EventType implements the Event interface.
func (e TierMembershipChanged) EventType() string { return e.Type }

// Event renders the attribute payload.
func (e TierMembershipChanged) Event() *types.Event {
	return &types.Event{Type: e.Type, Attributes: map[string]string{
		"tier":     u64(e.Tier),
		"accounts": formatAccounts(e.Accounts),
	}}
}

// AccountStatusChanged captures a batch suspension, rejection or their
// reversal. Type selects the concrete transition.
type AccountStatusChanged struct {
	Type     string
	Accounts [][20]byte
}

// EventType implements the Event interface.
func (e AccountStatusChanged) EventType() string { return e.Type }

// Event renders the attribute payload.
func (e AccountStatusChanged) Event() *types.Event {
	return &types.Event{Type: e.Type, Attributes: map[string]string{
		"accounts": formatAccounts(e.Accounts),
	}}
}

// PermissionItemsUpdated captures the controller being repointed at another
// capability registry.
type PermissionItemsUpdated struct {
	Previous [20]byte
	Registry [20]byte
}

// EventType implements the Event interface.
func (PermissionItemsUpdated) EventType() string { return TypePermissionItemsUpdated }

// Event renders the attribute payload.
func (e PermissionItemsUpdated) Event() *types.Event {
	return &types.Event{Type: TypePermissionItemsUpdated, Attributes: map[string]string{
		"previous": formatAccount(e.Previous),
		"registry": formatAccount(e.Registry),
	}}
}

// PermissionsAdminChanged captures a grant or revocation of the permissions
// admin role.
type PermissionsAdminChanged struct {
	Account [20]byte
	Granted bool
}

// EventType implements the Event interface.
func (e PermissionsAdminChanged) EventType() string {
	if e.Granted {
		return TypePermissionsAdminGranted
	}
	return TypePermissionsAdminRevoked
}

// Event renders the attribute payload.
func (e PermissionsAdminChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"account": formatAccount(e.Account),
	}}
}
