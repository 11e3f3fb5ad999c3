package engine

import (
	"fmt"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Recover sweeps the engine's full balance of a stray token to the given
// address; the null token recovers native currency. Administrator only.
// Unlike the flush stage this moves the entire balance — it exists to rescue
// funds that ended up resident in the engine outside any execution.
func (e *Engine) Recover(actor, token, to common.Address) (*uint256.Int, error) {
	if !e.registry.IsAdmin(actor) {
		return nil, ErrNotAdmin
	}

	var bal *uint256.Int
	if token == (common.Address{}) {
		bal = e.host.NativeBalance(e.self).Clone()
		if !bal.IsZero() {
			if err := e.host.NativeTransfer(e.self, to, bal); err != nil {
				return nil, fmt.Errorf("recovering native: %w", err)
			}
		}
	} else {
		var err error
		bal, err = e.tokenBalance(token, e.self)
		if err != nil {
			return nil, fmt.Errorf("reading recoverable balance: %w", err)
		}
		if !bal.IsZero() {
			ret, err := e.host.Call(e.self, token, nil, packTransfer(to, bal))
			if err != nil || !truthy(ret) {
				return nil, fmt.Errorf("recovering token %s: transfer failed", token)
			}
		}
	}

	e.sink.Record(audit.Event{
		Kind:  audit.KindRecover,
		Actor: actor.Hex(),
		Fields: map[string]string{
			"token":  token.Hex(),
			"to":     to.Hex(),
			"amount": bal.Dec(),
		},
	})
	return bal, nil
}
