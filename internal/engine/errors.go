package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Errors aborting an execution. Every one is fatal to the enclosing Execute
// call; there is no partial success.
var (
	ErrReentrantCall            = errors.New("reentrant execution")
	ErrEnginePaused             = errors.New("engine is paused")
	ErrBatchTooLarge            = errors.New("batch exceeds configured limit")
	ErrDuplicateFlush           = errors.New("duplicate token in flush list")
	ErrTargetNotWhitelisted     = errors.New("call target not whitelisted")
	ErrSpenderNotWhitelisted    = errors.New("approval spender not whitelisted")
	ErrTokenPullFailed          = errors.New("token pull failed")
	ErrTokenApprovalFailed      = errors.New("token approval failed")
	ErrInvalidInjectionOffset   = errors.New("invalid injection offset")
	ErrUnknownInjectionSelector = errors.New("selector not registered for injection")
	ErrOffsetMismatch           = errors.New("injection offset does not match registered offset")
	ErrZeroInjectionAmount      = errors.New("zero injection amount")
	ErrTokenFlushFailed         = errors.New("token flush failed")
	ErrNativeFlushFailed        = errors.New("native flush failed")
	ErrNotAdmin                 = errors.New("actor is not the administrator")
)

// CallError reports a failed external call. Revert carries the callee's raw
// failure payload unmodified so diagnostics survive the abort.
type CallError struct {
	Index  int
	Target common.Address
	Revert []byte
	Err    error
}

func (e *CallError) Error() string {
	if len(e.Revert) > 0 {
		return fmt.Sprintf("call %d to %s reverted: 0x%x", e.Index, e.Target, e.Revert)
	}
	return fmt.Sprintf("call %d to %s failed: %v", e.Index, e.Target, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
