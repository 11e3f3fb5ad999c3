package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// Encoded payloads follow the 4-byte-identifier + 32-byte-word layout.
const (
	SelectorLength = 4
	WordLength     = 32
)

// ERC-20 function identifiers consumed by the engine.
var (
	selTransfer     = Selector("transfer(address,uint256)")
	selTransferFrom = Selector("transferFrom(address,address,uint256)")
	selApprove      = Selector("approve(address,uint256)")
	selBalanceOf    = Selector("balanceOf(address)")
)

// Selector computes the 4-byte function identifier for a canonical signature,
// e.g. "transfer(address,uint256)".
func Selector(sig string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:SelectorLength])
	return sel
}

// payloadSelector reads the function identifier from an encoded payload.
func payloadSelector(payload []byte) (sel [4]byte, ok bool) {
	if len(payload) < SelectorLength {
		return sel, false
	}
	copy(sel[:], payload[:SelectorLength])
	return sel, true
}

func addressWord(a common.Address) (w [32]byte) {
	copy(w[12:], a.Bytes())
	return w
}

// pack builds calldata: selector followed by 32-byte words.
func pack(sel [4]byte, words ...[32]byte) []byte {
	out := make([]byte, 0, SelectorLength+WordLength*len(words))
	out = append(out, sel[:]...)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

func packTransfer(to common.Address, amount *uint256.Int) []byte {
	return pack(selTransfer, addressWord(to), amount.Bytes32())
}

func packTransferFrom(from, to common.Address, amount *uint256.Int) []byte {
	return pack(selTransferFrom, addressWord(from), addressWord(to), amount.Bytes32())
}

func packApprove(spender common.Address, amount *uint256.Int) []byte {
	return pack(selApprove, addressWord(spender), amount.Bytes32())
}

func packBalanceOf(holder common.Address) []byte {
	return pack(selBalanceOf, addressWord(holder))
}

// truthy implements the tolerant success convention for token calls: no
// return data counts as success, while returned data must carry a nonzero
// boolean word. Anything shorter than a word is malformed and counts as
// failure.
func truthy(ret []byte) bool {
	if len(ret) == 0 {
		return true
	}
	if len(ret) < WordLength {
		return false
	}
	return !new(uint256.Int).SetBytes(ret[:WordLength]).IsZero()
}
