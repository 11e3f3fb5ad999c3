package engine

import (
	"fmt"
)

// injectBalance validates the call's injection request and returns a copy of
// the payload with the computed amount patched in at the validated offset.
// The selector/offset cross-check runs before anything else: a caller must
// not be able to point the patch at an arbitrary payload location, even for a
// registered function.
func (e *Engine) injectBalance(c *Call, pulled pulledLedger) ([]byte, error) {
	sel, ok := payloadSelector(c.Payload)
	if !ok {
		return nil, fmt.Errorf("%w: payload shorter than a function identifier", ErrInvalidInjectionOffset)
	}
	want, registered := e.registry.ExpectedOffset(sel)
	if !registered {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownInjectionSelector, sel)
	}
	if c.InjectOffset != want {
		return nil, fmt.Errorf("%w: declared %d, registered %d for 0x%x",
			ErrOffsetMismatch, c.InjectOffset, want, sel)
	}

	balance, err := e.tokenBalance(c.InjectToken, e.self)
	if err != nil {
		return nil, fmt.Errorf("reading injectable balance of %s: %w", c.InjectToken, err)
	}
	// A pulled token is capped at the amount the caller brought in; a token
	// absent from the pulled ledger is an intermediate output of an earlier
	// call and uses the full live balance.
	inject := balance
	if ceil := pulled.ceiling(c.InjectToken); ceil != nil && ceil.Lt(balance) {
		inject = ceil
	}
	if inject.IsZero() {
		return nil, fmt.Errorf("%w: token %s", ErrZeroInjectionAmount, c.InjectToken)
	}

	if c.InjectOffset < 0 || c.InjectOffset+WordLength > len(c.Payload) {
		return nil, fmt.Errorf("%w: offset %d exceeds payload of %d bytes",
			ErrInvalidInjectionOffset, c.InjectOffset, len(c.Payload))
	}

	patched := make([]byte, len(c.Payload))
	copy(patched, c.Payload)
	word := inject.Bytes32()
	copy(patched[c.InjectOffset:c.InjectOffset+WordLength], word[:])
	return patched, nil
}
