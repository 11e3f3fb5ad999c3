package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Engine sequences the execution stages against a host ledger. At most one
// Execute may be mid-flight at a time; a reentrant invocation fails before
// reaching any stage logic.
type Engine struct {
	host     Host
	registry Registry
	sink     audit.Sink
	limits   Limits
	self     common.Address
	guard    guard
}

// New creates an Engine bound to a host ledger and configuration store.
// self is the engine's own ledger address — the custody account that pulled
// funds, approvals and calls operate from.
func New(host Host, reg Registry, self common.Address, limits Limits, sink audit.Sink) *Engine {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Engine{
		host:     host,
		registry: reg,
		sink:     sink,
		limits:   limits.withDefaults(),
		self:     self,
	}
}

// Self returns the engine's custody address.
func (e *Engine) Self() common.Address { return e.self }

// Execute runs one batch as an all-or-nothing unit: deposit the attached
// native value, snapshot balances, pull declared tokens, set approvals, run
// the calls with injection, revoke marked approvals and flush net gains back
// to the caller. On any failure the host is reverted and an error is
// returned; otherwise the raw return payload of each call is returned in
// order.
func (e *Engine) Execute(ctx context.Context, caller common.Address, batch Batch) ([][]byte, error) {
	if !e.guard.enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.exit()

	if e.registry.Paused() {
		return nil, ErrEnginePaused
	}
	if err := e.preflight(&batch); err != nil {
		return nil, err
	}

	snap := e.host.Snapshot()
	results, returned, err := e.run(ctx, caller, &batch)
	if err != nil {
		e.host.RevertToSnapshot(snap)
		return nil, err
	}

	e.sink.Record(audit.Event{
		Kind:  audit.KindExecute,
		Actor: caller.Hex(),
		Fields: map[string]string{
			"pulls":          strconv.Itoa(len(batch.Pulls)),
			"calls":          strconv.Itoa(len(batch.Calls)),
			"nativeReturned": returned.Dec(),
		},
	})
	return results, nil
}

// preflight enforces the batch preconditions before any state change:
// sequence lengths within limits and no duplicate flush tokens.
func (e *Engine) preflight(b *Batch) error {
	if n := len(b.Pulls); n > e.limits.MaxPulls {
		return fmt.Errorf("%w: %d pulls (max %d)", ErrBatchTooLarge, n, e.limits.MaxPulls)
	}
	if n := len(b.Approvals); n > e.limits.MaxApprovals {
		return fmt.Errorf("%w: %d approvals (max %d)", ErrBatchTooLarge, n, e.limits.MaxApprovals)
	}
	if n := len(b.Calls); n > e.limits.MaxCalls {
		return fmt.Errorf("%w: %d calls (max %d)", ErrBatchTooLarge, n, e.limits.MaxCalls)
	}
	if n := len(b.FlushTokens); n > e.limits.MaxFlushTokens {
		return fmt.Errorf("%w: %d flush tokens (max %d)", ErrBatchTooLarge, n, e.limits.MaxFlushTokens)
	}

	seen := make(map[common.Address]struct{}, len(b.FlushTokens))
	for _, t := range b.FlushTokens {
		if _, dup := seen[t]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFlush, t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

func (e *Engine) run(ctx context.Context, caller common.Address, b *Batch) ([][]byte, *uint256.Int, error) {
	// The attached native value travels with the invocation and is part of
	// the engine's balance from here on.
	if v := amount(b.Value); !v.IsZero() {
		if err := e.host.NativeTransfer(caller, e.self, v); err != nil {
			return nil, nil, fmt.Errorf("depositing attached value: %w", err)
		}
	}

	preNative := e.nativeBefore(amount(b.Value))
	preTokens, err := e.snapshotTokens(b.FlushTokens)
	if err != nil {
		return nil, nil, err
	}
	pulled := buildPulledLedger(b.Pulls)

	if err := e.pullTokens(caller, b.Pulls); err != nil {
		return nil, nil, err
	}
	if err := e.setApprovals(b.Approvals); err != nil {
		return nil, nil, err
	}
	results, err := e.runCalls(ctx, b.Calls, pulled)
	if err != nil {
		return nil, nil, err
	}
	if err := e.revokeApprovals(b.Approvals); err != nil {
		return nil, nil, err
	}
	returned, err := e.flush(caller, preTokens, preNative)
	if err != nil {
		return nil, nil, err
	}
	return results, returned, nil
}

// nativeBefore computes the native balance held before this execution's
// attached value arrived. The value is already part of the balance, so it is
// subtracted, floored at zero.
func (e *Engine) nativeBefore(value *uint256.Int) *uint256.Int {
	bal := e.host.NativeBalance(e.self)
	if bal.Lt(value) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(bal, value)
}

// snapshotTokens captures the engine's balance of every flush-target token,
// in list order. The null token is skipped; the native balance is snapshotted
// separately.
func (e *Engine) snapshotTokens(tokens []common.Address) ([]balanceSnapshot, error) {
	snaps := make([]balanceSnapshot, 0, len(tokens))
	for _, t := range tokens {
		if t == (common.Address{}) {
			continue
		}
		bal, err := e.tokenBalance(t, e.self)
		if err != nil {
			return nil, fmt.Errorf("snapshotting balance of %s: %w", t, err)
		}
		snaps = append(snaps, balanceSnapshot{token: t, balance: bal})
	}
	return snaps, nil
}

// tokenBalance reads the token balance of holder through a balanceOf call.
func (e *Engine) tokenBalance(token, holder common.Address) (*uint256.Int, error) {
	ret, err := e.host.Call(e.self, token, nil, packBalanceOf(holder))
	if err != nil {
		return nil, err
	}
	if len(ret) < WordLength {
		return nil, fmt.Errorf("balanceOf on %s returned %d bytes", token, len(ret))
	}
	return new(uint256.Int).SetBytes(ret[:WordLength]), nil
}
