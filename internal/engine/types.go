// Package engine implements the multicall execution pipeline: pull
// caller-declared funds into custody, grant temporary approvals to
// whitelisted counterparties, run a batch of gated external calls with
// live-balance injection, revoke marked approvals and flush only the net
// balance gains back to the caller — all as one atomic unit.
package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenPull is a caller-declared transfer-in instruction. A zero amount is a
// no-op and issues no token call.
type TokenPull struct {
	Token  common.Address
	Amount *uint256.Int
}

// Approval grants a spender temporary spending rights over a token.
// RevokeAfter marks the approval for reset to zero once the call stage ran.
type Approval struct {
	Token       common.Address
	Spender     common.Address
	Amount      *uint256.Int
	RevokeAfter bool
}

// Call invokes a whitelisted target with a raw encoded payload. A non-zero
// InjectToken requests that the engine patch its live balance of that token
// into the payload at InjectOffset before the call goes out; the offset must
// match the registered offset for the payload's function identifier.
type Call struct {
	Target       common.Address
	Value        *uint256.Int
	Payload      []byte
	InjectToken  common.Address
	InjectOffset int
}

// Batch is one complete execution request. Value is the native amount
// attached to the execution; FlushTokens lists the tokens whose net balance
// increase is returned to the caller afterwards.
type Batch struct {
	Pulls       []TokenPull
	Approvals   []Approval
	Calls       []Call
	FlushTokens []common.Address
	Value       *uint256.Int
}

// Limits bounds the per-batch sequence lengths. Zero fields fall back to the
// matching DefaultLimits value.
type Limits struct {
	MaxPulls       int
	MaxApprovals   int
	MaxCalls       int
	MaxFlushTokens int
}

// DefaultLimits is the shipped batch-size configuration.
var DefaultLimits = Limits{
	MaxPulls:       16,
	MaxApprovals:   16,
	MaxCalls:       16,
	MaxFlushTokens: 16,
}

// Host is the ledger the engine executes against.
type Host interface {
	// Call invokes target from the given account with an attached native
	// value and raw payload, returning the callee's raw return data. On
	// failure the returned bytes carry the callee's failure payload.
	Call(from, target common.Address, value *uint256.Int, payload []byte) ([]byte, error)

	// NativeBalance returns the native-currency balance of addr.
	NativeBalance(addr common.Address) *uint256.Int

	// NativeTransfer moves native currency between accounts.
	NativeTransfer(from, to common.Address, amount *uint256.Int) error

	// Snapshot marks the current ledger state; RevertToSnapshot restores it,
	// discarding every change made since.
	Snapshot() int
	RevertToSnapshot(id int)
}

// Registry is the read side of the trusted configuration store: the target
// whitelist, the selector offset table, the administrator and the pause flag.
type Registry interface {
	IsWhitelisted(addr common.Address) bool
	ExpectedOffset(sel [4]byte) (offset int, ok bool)
	IsAdmin(actor common.Address) bool
	Paused() bool
}

// amount treats a nil amount as zero.
func amount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func (l Limits) withDefaults() Limits {
	if l.MaxPulls <= 0 {
		l.MaxPulls = DefaultLimits.MaxPulls
	}
	if l.MaxApprovals <= 0 {
		l.MaxApprovals = DefaultLimits.MaxApprovals
	}
	if l.MaxCalls <= 0 {
		l.MaxCalls = DefaultLimits.MaxCalls
	}
	if l.MaxFlushTokens <= 0 {
		l.MaxFlushTokens = DefaultLimits.MaxFlushTokens
	}
	return l
}
