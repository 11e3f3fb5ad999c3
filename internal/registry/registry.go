// Package registry holds the engine's trusted configuration: the whitelist
// of callable targets and the selector offset table consulted before any
// payload injection. Mutations are administrator-gated and audited; reads
// are shared by every execution.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/ethereum/go-ethereum/common"
)

// MinOffset is the smallest registrable injection offset. Offsets 0–3 would
// overwrite the function identifier itself.
const MinOffset = 4

// DefaultMaxBatch bounds batched whitelist mutations.
const DefaultMaxBatch = 32

// Errors returned by the mutation surface.
var (
	ErrNotAdmin      = errors.New("actor is not the administrator")
	ErrInvalidOffset = errors.New("injection offset below minimum")
	ErrBatchTooLarge = errors.New("whitelist batch exceeds limit")
	ErrZeroAddress   = errors.New("zero address not allowed")
)

// Registry is the process-wide configuration store. The zero admin address
// means unclaimed: the first administrator is installed via TransferAdmin
// before any gating takes effect.
type Registry struct {
	mu       sync.RWMutex
	path     string
	maxBatch int
	sink     audit.Sink

	admin   common.Address
	paused  bool
	targets map[common.Address]struct{}
	offsets map[[4]byte]int
}

// New creates a Registry persisted at path (empty path keeps it in memory).
func New(path string, sink audit.Sink) *Registry {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Registry{
		path:     path,
		maxBatch: DefaultMaxBatch,
		sink:     sink,
		targets:  make(map[common.Address]struct{}),
		offsets:  make(map[[4]byte]int),
	}
}

// --- read surface ---

// IsWhitelisted reports whether addr may receive calls and approvals.
func (r *Registry) IsWhitelisted(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[addr]
	return ok
}

// ExpectedOffset returns the registered injection offset for a function
// identifier. ok is false for unregistered identifiers.
func (r *Registry) ExpectedOffset(sel [4]byte) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	off, ok := r.offsets[sel]
	return off, ok
}

// IsAdmin reports whether actor holds the administrator role. An unclaimed
// registry (zero admin) accepts any actor so the first administrator can be
// installed.
func (r *Registry) IsAdmin(actor common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin == (common.Address{}) || actor == r.admin
}

// Admin returns the current administrator address.
func (r *Registry) Admin() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

// Paused reports whether executions are suspended.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// Targets returns the whitelist, sorted for stable output.
func (r *Registry) Targets() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.targets))
	for a := range r.targets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// Offsets returns a copy of the selector offset table.
func (r *Registry) Offsets() map[[4]byte]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[[4]byte]int, len(r.offsets))
	for sel, off := range r.offsets {
		out[sel] = off
	}
	return out
}

// --- mutation surface (administrator only) ---

// AddTarget whitelists a single target address.
func (r *Registry) AddTarget(actor, target common.Address) error {
	if target == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	r.targets[target] = struct{}{}
	r.record(audit.KindWhitelistAdd, actor, map[string]string{"target": target.Hex()})
	return nil
}

// AddTargets whitelists a batch of targets. The batch size is bounded and
// the whole batch is validated before any entry is added.
func (r *Registry) AddTargets(actor common.Address, targets []common.Address) error {
	if len(targets) > r.maxBatch {
		return fmt.Errorf("%w: %d targets (max %d)", ErrBatchTooLarge, len(targets), r.maxBatch)
	}
	for _, t := range targets {
		if t == (common.Address{}) {
			return ErrZeroAddress
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	for _, t := range targets {
		r.targets[t] = struct{}{}
		r.record(audit.KindWhitelistAdd, actor, map[string]string{"target": t.Hex()})
	}
	return nil
}

// RemoveTarget deletes a target from the whitelist.
func (r *Registry) RemoveTarget(actor, target common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	delete(r.targets, target)
	r.record(audit.KindWhitelistRemove, actor, map[string]string{"target": target.Hex()})
	return nil
}

// SetOffset registers the expected injection offset for a function
// identifier. Offset zero clears the entry; a nonzero offset below MinOffset
// is rejected.
func (r *Registry) SetOffset(actor common.Address, sel [4]byte, offset int) error {
	if offset != 0 && offset < MinOffset {
		return fmt.Errorf("%w: %d (min %d)", ErrInvalidOffset, offset, MinOffset)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	if offset == 0 {
		delete(r.offsets, sel)
		r.record(audit.KindOffsetClear, actor, map[string]string{"selector": selectorHex(sel)})
		return nil
	}
	r.offsets[sel] = offset
	r.record(audit.KindOffsetSet, actor, map[string]string{
		"selector": selectorHex(sel),
		"offset":   strconv.Itoa(offset),
	})
	return nil
}

// SetPaused suspends or resumes executions.
func (r *Registry) SetPaused(actor common.Address, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	r.paused = paused
	kind := audit.KindUnpause
	if paused {
		kind = audit.KindPause
	}
	r.record(kind, actor, nil)
	return nil
}

// TransferAdmin hands the administrator role to a new address. Transferring
// to the zero address would leave the registry unclaimed and is rejected.
func (r *Registry) TransferAdmin(actor, newAdmin common.Address) error {
	if newAdmin == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdmin(actor); err != nil {
		return err
	}
	r.admin = newAdmin
	r.record(audit.KindAdminTransfer, actor, map[string]string{"newAdmin": newAdmin.Hex()})
	return nil
}

// --- internal ---

// requireAdmin must be called with the write lock held.
func (r *Registry) requireAdmin(actor common.Address) error {
	if r.admin != (common.Address{}) && actor != r.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, actor)
	}
	return nil
}

func (r *Registry) record(kind string, actor common.Address, fields map[string]string) {
	r.sink.Record(audit.Event{Kind: kind, Actor: actor.Hex(), Fields: fields})
}
