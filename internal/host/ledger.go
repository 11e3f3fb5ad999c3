// Package host provides an in-memory ledger implementing the execution
// surface the engine runs against: native balances, token accounts that
// speak the standard encoded token calldata, programmable call handlers,
// and snapshot/revert for atomic execution.
package host

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Ledger errors.
var (
	ErrUnknownTarget        = errors.New("call to unknown target")
	ErrInsufficientNative   = errors.New("insufficient native balance")
	ErrInsufficientBalance  = errors.New("insufficient token balance")
	ErrInsufficientApproval = errors.New("insufficient allowance")
	ErrNonZeroApproval      = errors.New("allowance must be reset to zero first")
	ErrBadSnapshot          = errors.New("unknown snapshot id")
)

// Handler services calls to a programmable target.
type Handler func(env *CallEnv) ([]byte, error)

// CallEnv carries the context of one inbound call to a Handler. Value has
// already been credited to the target when the handler runs.
type CallEnv struct {
	Ledger  *Ledger
	From    common.Address
	Target  common.Address
	Value   *uint256.Int
	Payload []byte
}

// TokenConfig tunes a token's behavior at its calldata surface.
type TokenConfig struct {
	// OmitReturnData makes transfer, transferFrom and approve return no
	// data on success instead of a true word.
	OmitReturnData bool
	// RequireZeroApproval rejects approve calls that change a nonzero
	// allowance to another nonzero value.
	RequireZeroApproval bool
}

type tokenAccount struct {
	config     TokenConfig
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

type state struct {
	native map[common.Address]*uint256.Int
	tokens map[common.Address]*tokenAccount
}

// Ledger is the in-memory execution state. It is not safe for concurrent
// use; the engine serializes executions.
type Ledger struct {
	native    map[common.Address]*uint256.Int
	tokens    map[common.Address]*tokenAccount
	handlers  map[common.Address]Handler
	snapshots []*state
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		native:   make(map[common.Address]*uint256.Int),
		tokens:   make(map[common.Address]*tokenAccount),
		handlers: make(map[common.Address]Handler),
	}
}

// AddToken registers a token contract at addr with default behavior.
func (l *Ledger) AddToken(addr common.Address) {
	l.AddTokenWithConfig(addr, TokenConfig{})
}

// AddTokenWithConfig registers a token contract with explicit behavior.
func (l *Ledger) AddTokenWithConfig(addr common.Address, cfg TokenConfig) {
	l.tokens[addr] = &tokenAccount{
		config:     cfg,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// SetHandler installs a programmable call target at addr.
func (l *Ledger) SetHandler(addr common.Address, h Handler) {
	l.handlers[addr] = h
}

// --- engine execution surface ---

// Call dispatches an inbound call: native value moves first, then the
// payload is serviced by the token interpreter or a handler. A failing call
// leaves no trace on the ledger.
func (l *Ledger) Call(from, target common.Address, value *uint256.Int, payload []byte) ([]byte, error) {
	id := l.Snapshot()
	ret, err := l.call(from, target, value, payload)
	if err != nil {
		l.RevertToSnapshot(id)
		return ret, err
	}
	l.discardSnapshot(id)
	return ret, nil
}

func (l *Ledger) call(from, target common.Address, value *uint256.Int, payload []byte) ([]byte, error) {
	if value != nil && !value.IsZero() {
		if err := l.NativeTransfer(from, target, value); err != nil {
			return nil, err
		}
	}
	if tok, ok := l.tokens[target]; ok {
		return l.tokenCall(tok, from, payload)
	}
	if h, ok := l.handlers[target]; ok {
		return h(&CallEnv{Ledger: l, From: from, Target: target, Value: value, Payload: payload})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
}

// NativeBalance returns addr's native balance.
func (l *Ledger) NativeBalance(addr common.Address) *uint256.Int {
	if b, ok := l.native[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// NativeTransfer moves native currency between accounts.
func (l *Ledger) NativeTransfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal := l.NativeBalance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientNative, from, bal, amount)
	}
	l.native[from] = bal.Sub(bal, amount)
	l.native[to] = new(uint256.Int).Add(l.NativeBalance(to), amount)
	return nil
}

// Snapshot records the current state and returns its id.
func (l *Ledger) Snapshot() int {
	l.snapshots = append(l.snapshots, l.copyState())
	return len(l.snapshots) - 1
}

// RevertToSnapshot restores the state recorded under id and discards it and
// every later snapshot. An unknown id panics; it signals misuse, not a
// runtime condition.
func (l *Ledger) RevertToSnapshot(id int) {
	if id < 0 || id >= len(l.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrBadSnapshot, id))
	}
	s := l.snapshots[id]
	l.native = s.native
	l.tokens = s.tokens
	l.snapshots = l.snapshots[:id]
}

func (l *Ledger) discardSnapshot(id int) {
	if id == len(l.snapshots)-1 {
		l.snapshots = l.snapshots[:id]
	}
}

// --- test and setup primitives ---

// Mint credits amount of token to holder.
func (l *Ledger) Mint(token, holder common.Address, amount *uint256.Int) {
	tok := l.tokens[token]
	if tok == nil {
		panic(fmt.Errorf("%w: %s", ErrUnknownTarget, token))
	}
	tok.balances[holder] = new(uint256.Int).Add(tok.balance(holder), amount)
}

// SetAllowance sets the allowance owner grants spender on token outright.
func (l *Ledger) SetAllowance(token, owner, spender common.Address, amount *uint256.Int) {
	tok := l.tokens[token]
	if tok == nil {
		panic(fmt.Errorf("%w: %s", ErrUnknownTarget, token))
	}
	tok.setAllowance(owner, spender, amount)
}

// SetNativeBalance sets addr's native balance outright.
func (l *Ledger) SetNativeBalance(addr common.Address, amount *uint256.Int) {
	l.native[addr] = amount.Clone()
}

// BalanceOf returns holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *uint256.Int {
	if tok := l.tokens[token]; tok != nil {
		return tok.balance(holder).Clone()
	}
	return new(uint256.Int)
}

// Allowance returns the spending allowance owner granted spender on token.
func (l *Ledger) Allowance(token, owner, spender common.Address) *uint256.Int {
	if tok := l.tokens[token]; tok != nil {
		return tok.allowance(owner, spender).Clone()
	}
	return new(uint256.Int)
}

// --- internal ---

func (l *Ledger) copyState() *state {
	s := &state{
		native: make(map[common.Address]*uint256.Int, len(l.native)),
		tokens: make(map[common.Address]*tokenAccount, len(l.tokens)),
	}
	for a, b := range l.native {
		s.native[a] = b.Clone()
	}
	for a, tok := range l.tokens {
		cp := &tokenAccount{
			config:     tok.config,
			balances:   make(map[common.Address]*uint256.Int, len(tok.balances)),
			allowances: make(map[common.Address]map[common.Address]*uint256.Int, len(tok.allowances)),
		}
		for h, b := range tok.balances {
			cp.balances[h] = b.Clone()
		}
		for owner, grants := range tok.allowances {
			g := make(map[common.Address]*uint256.Int, len(grants))
			for spender, amt := range grants {
				g[spender] = amt.Clone()
			}
			cp.allowances[owner] = g
		}
		s.tokens[a] = cp
	}
	return s
}

func (t *tokenAccount) balance(holder common.Address) *uint256.Int {
	if b, ok := t.balances[holder]; ok {
		return b
	}
	return new(uint256.Int)
}

func (t *tokenAccount) allowance(owner, spender common.Address) *uint256.Int {
	if grants, ok := t.allowances[owner]; ok {
		if a, ok := grants[spender]; ok {
			return a
		}
	}
	return new(uint256.Int)
}

// keccakSelector computes the 4-byte function identifier of a signature.
func keccakSelector(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}
