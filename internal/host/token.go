package host

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Standard token function identifiers serviced by the interpreter.
var (
	selTransfer     = keccakSelector("transfer(address,uint256)")
	selTransferFrom = keccakSelector("transferFrom(address,address,uint256)")
	selApprove      = keccakSelector("approve(address,uint256)")
	selBalanceOf    = keccakSelector("balanceOf(address)")
	selAllowance    = keccakSelector("allowance(address,address)")
)

// ErrBadCalldata indicates a payload the token interpreter cannot decode.
var ErrBadCalldata = errors.New("malformed token calldata")

var trueWord = func() []byte {
	w := make([]byte, 32)
	w[31] = 1
	return w
}()

// tokenCall interprets an encoded payload against a token account.
func (l *Ledger) tokenCall(tok *tokenAccount, from common.Address, payload []byte) ([]byte, error) {
	sel, words, err := decode(payload)
	if err != nil {
		return nil, err
	}
	switch sel {
	case selTransfer:
		to, amt, err := addrAmount(words)
		if err != nil {
			return nil, err
		}
		if err := tok.transfer(from, to, amt); err != nil {
			return nil, err
		}
		return tok.boolResult(), nil

	case selTransferFrom:
		if len(words) != 3 {
			return nil, fmt.Errorf("%w: transferFrom wants 3 words, got %d", ErrBadCalldata, len(words))
		}
		owner := wordAddress(words[0])
		to := wordAddress(words[1])
		amt := new(uint256.Int).SetBytes(words[2][:])
		if err := tok.transferFrom(from, owner, to, amt); err != nil {
			return nil, err
		}
		return tok.boolResult(), nil

	case selApprove:
		spender, amt, err := addrAmount(words)
		if err != nil {
			return nil, err
		}
		if tok.config.RequireZeroApproval && !amt.IsZero() && !tok.allowance(from, spender).IsZero() {
			return nil, ErrNonZeroApproval
		}
		tok.setAllowance(from, spender, amt)
		return tok.boolResult(), nil

	case selBalanceOf:
		if len(words) != 1 {
			return nil, fmt.Errorf("%w: balanceOf wants 1 word, got %d", ErrBadCalldata, len(words))
		}
		b := tok.balance(wordAddress(words[0])).Bytes32()
		return b[:], nil

	case selAllowance:
		if len(words) != 2 {
			return nil, fmt.Errorf("%w: allowance wants 2 words, got %d", ErrBadCalldata, len(words))
		}
		a := tok.allowance(wordAddress(words[0]), wordAddress(words[1])).Bytes32()
		return a[:], nil
	}
	return nil, fmt.Errorf("%w: unknown identifier %x", ErrBadCalldata, sel)
}

func (t *tokenAccount) transfer(from, to common.Address, amount *uint256.Int) error {
	bal := t.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, bal, amount)
	}
	t.balances[from] = new(uint256.Int).Sub(bal, amount)
	t.balances[to] = new(uint256.Int).Add(t.balance(to), amount)
	return nil
}

func (t *tokenAccount) transferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	allowed := t.allowance(owner, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: %s allowed %s, needs %s", ErrInsufficientApproval, spender, allowed, amount)
	}
	if err := t.transfer(owner, to, amount); err != nil {
		return err
	}
	t.setAllowance(owner, spender, new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (t *tokenAccount) setAllowance(owner, spender common.Address, amount *uint256.Int) {
	grants := t.allowances[owner]
	if grants == nil {
		grants = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = grants
	}
	grants[spender] = amount.Clone()
}

func (t *tokenAccount) boolResult() []byte {
	if t.config.OmitReturnData {
		return nil
	}
	out := make([]byte, 32)
	copy(out, trueWord)
	return out
}

// --- calldata helpers ---

func decode(payload []byte) (sel [4]byte, words [][32]byte, err error) {
	if len(payload) < 4 || (len(payload)-4)%32 != 0 {
		return sel, nil, fmt.Errorf("%w: %d bytes", ErrBadCalldata, len(payload))
	}
	copy(sel[:], payload[:4])
	body := payload[4:]
	for len(body) > 0 {
		var w [32]byte
		copy(w[:], body[:32])
		words = append(words, w)
		body = body[32:]
	}
	return sel, words, nil
}

func addrAmount(words [][32]byte) (common.Address, *uint256.Int, error) {
	if len(words) != 2 {
		return common.Address{}, nil, fmt.Errorf("%w: want 2 words, got %d", ErrBadCalldata, len(words))
	}
	return wordAddress(words[0]), new(uint256.Int).SetBytes(words[1][:]), nil
}

func wordAddress(w [32]byte) common.Address {
	return common.BytesToAddress(w[12:])
}
