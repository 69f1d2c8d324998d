package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	nativecommon "shark/native/common"
	"shark/native/bank"
	"shark/native/lending"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{&lending.InvalidFundsError{Expected: "usdc"}, ClassInvalidFunds},
		{lending.ErrFundsRequired, ClassFundsRequired},
		{fmt.Errorf("%w: requested 23", lending.ErrInsufficientCollateral), ClassInsufficientCollateral},
		{lending.ErrInsufficientLiquidity, ClassInsufficientLiquidity},
		{fmt.Errorf("wrap: %w", bank.ErrInsufficientBalance), ClassInsufficientBalance},
		{fmt.Errorf("%w: lending.borrow", nativecommon.ErrModulePaused), ClassPaused},
		{fmt.Errorf("%w: pool 1: %w", lending.ErrOracle, context.DeadlineExceeded), ClassOracle},
		{fmt.Errorf("load: %w", context.Canceled), ClassCanceled},
		{lending.ErrInvalidAmount, ClassInvalidRequest},
		{fmt.Errorf("%w: pool 1: dial", lending.ErrOracle), ClassOracle},
		{&lending.DiagnosticError{Msg: "bad reserves"}, ClassDiagnostic},
		{lending.ErrUnsupportedAction, ClassUnsupported},
		{stderrors.New("disk on fire"), ClassInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
