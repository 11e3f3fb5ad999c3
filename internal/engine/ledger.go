package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// pulledLedger sums the amounts pulled per distinct token within one
// execution. It is built before the pull stage runs and read-only afterwards;
// the injection engine uses it to cap how much of a pulled token a call may
// spend.
type pulledLedger map[common.Address]*uint256.Int

func buildPulledLedger(pulls []TokenPull) pulledLedger {
	l := make(pulledLedger, len(pulls))
	for _, p := range pulls {
		a := amount(p.Amount)
		if a.IsZero() {
			continue
		}
		if prev, ok := l[p.Token]; ok {
			l[p.Token] = new(uint256.Int).Add(prev, a)
		} else {
			l[p.Token] = a.Clone()
		}
	}
	return l
}

// ceiling returns the injectable ceiling for token, or nil when the token was
// never pulled. An unpulled token is an intermediate output of an earlier
// call in the batch and carries no cap.
func (l pulledLedger) ceiling(token common.Address) *uint256.Int {
	return l[token]
}

// balanceSnapshot is one (token, balance) pair captured before the pull stage.
type balanceSnapshot struct {
	token   common.Address
	balance *uint256.Int
}
