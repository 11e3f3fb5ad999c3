package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// pullTokens moves each declared amount from the caller into engine custody.
// Zero-amount entries are skipped without a token call.
func (e *Engine) pullTokens(caller common.Address, pulls []TokenPull) error {
	for _, p := range pulls {
		a := amount(p.Amount)
		if a.IsZero() {
			continue
		}
		ret, err := e.host.Call(e.self, p.Token, nil, packTransferFrom(caller, e.self, a))
		if err != nil || !truthy(ret) {
			return fmt.Errorf("%w: token %s amount %s", ErrTokenPullFailed, p.Token, a.Dec())
		}
	}
	return nil
}

// setApprovals grants each nonzero approval to its spender, which must be
// whitelisted. The existing approval is reset to zero first: some tokens
// reject a nonzero-to-nonzero change.
func (e *Engine) setApprovals(approvals []Approval) error {
	for _, a := range approvals {
		v := amount(a.Amount)
		if v.IsZero() {
			continue
		}
		if !e.registry.IsWhitelisted(a.Spender) {
			return fmt.Errorf("%w: %s", ErrSpenderNotWhitelisted, a.Spender)
		}
		if err := e.approve(a.Token, a.Spender, new(uint256.Int)); err != nil {
			return fmt.Errorf("%w: resetting token %s spender %s", ErrTokenApprovalFailed, a.Token, a.Spender)
		}
		if err := e.approve(a.Token, a.Spender, v); err != nil {
			return fmt.Errorf("%w: token %s spender %s amount %s", ErrTokenApprovalFailed, a.Token, a.Spender, v.Dec())
		}
	}
	return nil
}

// revokeApprovals resets every approval marked RevokeAfter back to zero. An
// approval left behind is a security defect, so a failed revoke aborts the
// whole execution.
func (e *Engine) revokeApprovals(approvals []Approval) error {
	for _, a := range approvals {
		if !a.RevokeAfter || amount(a.Amount).IsZero() {
			continue
		}
		if err := e.approve(a.Token, a.Spender, new(uint256.Int)); err != nil {
			return fmt.Errorf("%w: revoking token %s spender %s", ErrTokenApprovalFailed, a.Token, a.Spender)
		}
	}
	return nil
}

func (e *Engine) approve(token, spender common.Address, v *uint256.Int) error {
	ret, err := e.host.Call(e.self, token, nil, packApprove(spender, v))
	if err != nil {
		return err
	}
	if !truthy(ret) {
		return fmt.Errorf("approve on %s returned false", token)
	}
	return nil
}

// runCalls executes each call in sequence order: whitelist check, optional
// balance injection, then the call itself. A failing call aborts with its raw
// failure payload preserved.
func (e *Engine) runCalls(ctx context.Context, calls []Call, pulled pulledLedger) ([][]byte, error) {
	results := make([][]byte, 0, len(calls))
	for i := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &calls[i]
		if !e.registry.IsWhitelisted(c.Target) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotWhitelisted, c.Target)
		}

		payload := c.Payload
		if c.InjectToken != (common.Address{}) {
			patched, err := e.injectBalance(c, pulled)
			if err != nil {
				return nil, err
			}
			payload = patched
		}

		ret, err := e.host.Call(e.self, c.Target, amount(c.Value), payload)
		if err != nil {
			return nil, &CallError{Index: i, Target: c.Target, Revert: ret, Err: err}
		}
		results = append(results, ret)
	}
	return results, nil
}

// flush transfers to the caller the net balance increase of every
// snapshotted token, then mirrors the same delta logic for native currency.
// Only the delta moves — balances resident before the execution stay put.
func (e *Engine) flush(caller common.Address, pre []balanceSnapshot, preNative *uint256.Int) (*uint256.Int, error) {
	for _, s := range pre {
		now, err := e.tokenBalance(s.token, e.self)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrTokenFlushFailed, s.token, err)
		}
		if !now.Gt(s.balance) {
			continue
		}
		delta := new(uint256.Int).Sub(now, s.balance)
		ret, err := e.host.Call(e.self, s.token, nil, packTransfer(caller, delta))
		if err != nil || !truthy(ret) {
			return nil, fmt.Errorf("%w: token %s amount %s", ErrTokenFlushFailed, s.token, delta.Dec())
		}
	}

	returned := new(uint256.Int)
	nowNative := e.host.NativeBalance(e.self)
	if nowNative.Gt(preNative) {
		returned.Sub(nowNative, preNative)
		if err := e.host.NativeTransfer(e.self, caller, returned); err != nil {
			return nil, fmt.Errorf("%w: amount %s: %v", ErrNativeFlushFailed, returned.Dec(), err)
		}
	}
	return returned, nil
}
