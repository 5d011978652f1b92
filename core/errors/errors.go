package errors

import (
	stderrors "errors"
	"strconv"
	"strings"
)

// Error kinds shared by the capability registry, the access controller, the
// token ledger and the pool engine. Callers match them with errors.Is.
var (
	ErrUnauthorized          = stderrors.New("unauthorized")
	ErrZeroAddress           = stderrors.New("zero address")
	ErrInvalidArgument       = stderrors.New("invalid argument")
	ErrNotFound              = stderrors.New("not found")
	ErrAlreadyInitialized    = stderrors.New("already initialized")
	ErrDuplicateTier         = stderrors.New("tier already exists")
	ErrAlreadyAssigned       = stderrors.New("already assigned")
	ErrAlreadySuspended      = stderrors.New("address is already suspended")
	ErrAlreadyRejected       = stderrors.New("address is already rejected")
	ErrNotAssigned           = stderrors.New("not assigned")
	ErrNotSuspended          = stderrors.New("address is not suspended")
	ErrNotRejected           = stderrors.New("address is not rejected")
	ErrPoolStillActive       = stderrors.New("pool is still active")
	ErrPoolNotActive         = stderrors.New("pool is not active")
	ErrScheduleWindowClosed  = stderrors.New("schedule window closed")
	ErrAmountOutOfBounds     = stderrors.New("amount out of bounds")
	ErrNoRewardTokens        = stderrors.New("pool has no reward tokens")
	ErrRewardAlreadyFunded   = stderrors.New("pool reward already funded")
	ErrDoubleClaim           = stderrors.New("double claim found")
	ErrInsufficientBalance   = stderrors.New("insufficient balance")
	ErrInsufficientAllowance = stderrors.New("insufficient allowance")
	ErrTransferFailed        = stderrors.New("token transfer failed")
	ErrTransferDisabled      = stderrors.New("disabled")
	ErrReentrantCall         = stderrors.New("reentrant call")
	ErrModulePaused          = stderrors.New("module paused")
)

var kinds = []struct {
	kind      error
	code      string
	transient bool
}{
	{ErrUnauthorized, "unauthorized", false},
	{ErrZeroAddress, "zero_address", false},
	{ErrInvalidArgument, "invalid_argument", false},
	{ErrNotFound, "not_found", false},
	{ErrAlreadyInitialized, "already_initialized", false},
	{ErrDuplicateTier, "duplicate_tier", false},
	{ErrAlreadyAssigned, "already_assigned", false},
	{ErrAlreadySuspended, "already_suspended", false},
	{ErrAlreadyRejected, "already_rejected", false},
	{ErrNotAssigned, "not_assigned", false},
	{ErrNotSuspended, "not_suspended", false},
	{ErrNotRejected, "not_rejected", false},
	{ErrPoolStillActive, "pool_still_active", false},
	{ErrPoolNotActive, "pool_not_active", false},
	{ErrScheduleWindowClosed, "schedule_window_closed", false},
	{ErrAmountOutOfBounds, "amount_out_of_bounds", false},
	{ErrNoRewardTokens, "no_reward_tokens", false},
	{ErrRewardAlreadyFunded, "reward_already_funded", false},
	{ErrDoubleClaim, "double_claim", false},
	{ErrInsufficientBalance, "insufficient_balance", true},
	{ErrInsufficientAllowance, "insufficient_allowance", true},
	{ErrTransferFailed, "transfer_failed", true},
	{ErrTransferDisabled, "transfer_disabled", false},
	{ErrReentrantCall, "reentrant_call", false},
	{ErrModulePaused, "module_paused", true},
}

// Error decorates a kind with the operation that failed and the offending
// account or record.
type Error struct {
	Kind    error
	Op      string
	Account string
	ID      string
	Msg     string
	Cause   error
}

// New returns an error of the supplied kind raised by op.
func New(kind error, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches a lower-level cause to a kind.
func Wrap(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WithAccount records the account that triggered the failure.
func (e *Error) WithAccount(account string) *Error {
	e.Account = account
	return e
}

// WithID records the identifier of the record involved in the failure.
func (e *Error) WithID(id uint64) *Error {
	e.ID = strconv.FormatUint(id, 10)
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Msg)
	}
	if e.Account != "" {
		b.WriteString(" (account ")
		b.WriteString(e.Account)
		b.WriteString(")")
	}
	if e.ID != "" {
		b.WriteString(" (id ")
		b.WriteString(e.ID)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// KindOf returns the taxonomy kind carried by err, or nil when err does not
// belong to the taxonomy.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.kind) {
			return k.kind
		}
	}
	return nil
}

// Code returns a stable snake_case identifier for the kind carried by err.
func Code(err error) string {
	kind := KindOf(err)
	if kind == nil {
		if err == nil {
			return ""
		}
		return "internal"
	}
	for _, k := range kinds {
		if k.kind == kind {
			return k.code
		}
	}
	return "internal"
}

// IsTransient reports whether err reflects a funding or availability condition
// that may succeed on retry, as opposed to permanent misuse.
func IsTransient(err error) bool {
	kind := KindOf(err)
	for _, k := range kinds {
		if k.kind == kind {
			return k.transient
		}
	}
	return false
}
