package lending

import (
	"errors"
	"fmt"

	"shark/core/types"
)

var (
	// ErrUnauthorized is reserved for admin-gated operations.
	ErrUnauthorized           = errors.New("lending: unauthorized")
	ErrInvalidFunds           = errors.New("lending: invalid funds")
	ErrFundsRequired          = errors.New("lending: funds required")
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrInsufficientLiquidity  = errors.New("lending: insufficient liquidity")
	ErrInvalidAmount          = errors.New("lending: amount must be positive")
	ErrUnexpectedFunds        = errors.New("lending: action does not accept funds")
	ErrNotInstantiated        = errors.New("lending: contract not instantiated")
	ErrAlreadyInstantiated    = errors.New("lending: contract already instantiated")
	ErrInvalidConfig          = errors.New("lending: invalid config")
	ErrInvalidMessage         = errors.New("lending: message must select exactly one action")
	ErrUnsupportedAction      = errors.New("lending: action not supported")
	ErrOracle                 = errors.New("lending: oracle query failed")

	errNilState  = errors.New("lending: state not configured")
	errNilOracle = errors.New("lending: oracle not configured")
)

// InvalidFundsError reports a single attached coin of the wrong denom.
type InvalidFundsError struct {
	Funds    *types.Coin
	Expected string
}

func (e *InvalidFundsError) Error() string {
	if e.Funds == nil {
		return fmt.Sprintf("%s: expected %s", ErrInvalidFunds, e.Expected)
	}
	return fmt.Sprintf("%s: got %s, expected %s", ErrInvalidFunds, e.Funds, e.Expected)
}

func (e *InvalidFundsError) Is(target error) bool {
	return target == ErrInvalidFunds
}

// DiagnosticError carries a free-form message for conditions that have no
// dedicated kind. Its text is not a stable contract.
type DiagnosticError struct {
	Msg string
}

func (e *DiagnosticError) Error() string {
	return "lending: " + e.Msg
}
