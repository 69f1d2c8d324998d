package errors

import (
	"context"
	stderrors "errors"

	"shark/core/types"
	"shark/crypto"
	nativecommon "shark/native/common"
	"shark/native/bank"
	"shark/native/lending"
)

// Class is a stable, low-cardinality name for an error kind. Classes label
// metrics and journal rows and select API status codes.
type Class string

const (
	ClassNone                   Class = ""
	ClassInvalidFunds           Class = "invalid_funds"
	ClassFundsRequired          Class = "funds_required"
	ClassUnexpectedFunds        Class = "unexpected_funds"
	ClassInsufficientCollateral Class = "insufficient_collateral"
	ClassInsufficientLiquidity  Class = "insufficient_liquidity"
	ClassInsufficientBalance    Class = "insufficient_balance"
	ClassUnauthorized           Class = "unauthorized"
	ClassInvalidRequest         Class = "invalid_request"
	ClassUnsupported            Class = "unsupported_action"
	ClassNotInstantiated        Class = "not_instantiated"
	ClassAlreadyInstantiated    Class = "already_instantiated"
	ClassPaused                 Class = "paused"
	ClassOracle                 Class = "oracle_unavailable"
	ClassCanceled               Class = "canceled"
	ClassDiagnostic             Class = "diagnostic"
	ClassInternal               Class = "internal"
)

// Classify maps err to its Class. Unknown errors are internal.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var diag *lending.DiagnosticError
	switch {
	case stderrors.Is(err, lending.ErrInvalidFunds), stderrors.Is(err, bank.ErrInvalidCoins):
		return ClassInvalidFunds
	case stderrors.Is(err, lending.ErrFundsRequired):
		return ClassFundsRequired
	case stderrors.Is(err, lending.ErrUnexpectedFunds):
		return ClassUnexpectedFunds
	case stderrors.Is(err, lending.ErrInsufficientCollateral):
		return ClassInsufficientCollateral
	case stderrors.Is(err, lending.ErrInsufficientLiquidity):
		return ClassInsufficientLiquidity
	case stderrors.Is(err, bank.ErrInsufficientBalance):
		return ClassInsufficientBalance
	case stderrors.Is(err, lending.ErrUnauthorized):
		return ClassUnauthorized
	case stderrors.Is(err, lending.ErrInvalidAmount),
		stderrors.Is(err, lending.ErrInvalidMessage),
		stderrors.Is(err, lending.ErrInvalidConfig),
		stderrors.Is(err, types.ErrInvalidAmount),
		stderrors.Is(err, types.ErrInvalidDenom),
		stderrors.Is(err, types.ErrAmountOverflow),
		stderrors.Is(err, crypto.ErrInvalidAddress),
		stderrors.Is(err, crypto.ErrPrefixMismatch):
		return ClassInvalidRequest
	case stderrors.Is(err, lending.ErrUnsupportedAction):
		return ClassUnsupported
	case stderrors.Is(err, lending.ErrNotInstantiated):
		return ClassNotInstantiated
	case stderrors.Is(err, lending.ErrAlreadyInstantiated):
		return ClassAlreadyInstantiated
	case stderrors.Is(err, nativecommon.ErrModulePaused):
		return ClassPaused
	case stderrors.Is(err, lending.ErrOracle):
		// Oracle errors may also wrap the per-request deadline.
		return ClassOracle
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case stderrors.As(err, &diag):
		return ClassDiagnostic
	default:
		return ClassInternal
	}
}
