package items

import (
	"context"

	coreerrors "rocket/core/errors"
)

// Items are soul-bound: every holder-initiated movement is refused.

// SetApprovalForAll always fails with ErrTransferDisabled.
func (r *Registry) SetApprovalForAll(ctx context.Context, caller, operator [20]byte, approved bool) error {
	return coreerrors.New(coreerrors.ErrTransferDisabled, "items: set approval for all", "")
}

// SafeTransferFrom always fails with ErrTransferDisabled.
func (r *Registry) SafeTransferFrom(ctx context.Context, caller, from, to [20]byte, id, amount uint64, data []byte) error {
	return coreerrors.New(coreerrors.ErrTransferDisabled, "items: safe transfer from", "")
}

// SafeBatchTransferFrom always fails with ErrTransferDisabled.
func (r *Registry) SafeBatchTransferFrom(ctx context.Context, caller, from, to [20]byte, ids, amounts []uint64, data []byte) error {
	return coreerrors.New(coreerrors.ErrTransferDisabled, "items: safe batch transfer from", "")
}

// IsApprovedForAll is always false since approvals can never be granted.
func (r *Registry) IsApprovedForAll(owner, operator [20]byte) bool { return false }
