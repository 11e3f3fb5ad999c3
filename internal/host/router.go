package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SwapSig is the canonical signature of the router's swap entry point. The
// input amount sits in the first argument word, directly after the function
// identifier.
const SwapSig = "swapExactIn(uint256,address)"

// SwapAmountOffset is the payload offset of the swap input amount.
const SwapAmountOffset = 4

var selSwapExactIn = keccakSelector(SwapSig)

// PackSwapExactIn encodes a call to the router's swap entry point.
func PackSwapExactIn(amountIn *uint256.Int, recipient common.Address) []byte {
	out := make([]byte, 0, 4+64)
	out = append(out, selSwapExactIn[:]...)
	amt := amountIn.Bytes32()
	out = append(out, amt[:]...)
	var rec [32]byte
	copy(rec[12:], recipient.Bytes())
	return append(out, rec[:]...)
}

// NewSwapRouter returns a handler that swaps tokenIn for tokenOut at the
// fixed rate rateNum/rateDen. The caller must have approved the router for
// the input amount beforehand; output is paid from the router's own
// inventory of tokenOut, so the inventory must be minted during setup.
func NewSwapRouter(router, tokenIn, tokenOut common.Address, rateNum, rateDen uint64) Handler {
	return func(env *CallEnv) ([]byte, error) {
		sel, words, err := decode(env.Payload)
		if err != nil {
			return nil, err
		}
		if sel != selSwapExactIn {
			return nil, fmt.Errorf("%w: unknown identifier %x", ErrBadCalldata, sel)
		}
		if len(words) != 2 {
			return nil, fmt.Errorf("%w: swapExactIn wants 2 words, got %d", ErrBadCalldata, len(words))
		}
		amountIn := new(uint256.Int).SetBytes(words[0][:])
		recipient := wordAddress(words[1])

		in := env.Ledger.tokens[tokenIn]
		out := env.Ledger.tokens[tokenOut]
		if in == nil || out == nil {
			return nil, fmt.Errorf("%w: router token", ErrUnknownTarget)
		}
		if err := in.transferFrom(router, env.From, router, amountIn); err != nil {
			return nil, err
		}

		amountOut := new(uint256.Int).Mul(amountIn, uint256.NewInt(rateNum))
		amountOut.Div(amountOut, uint256.NewInt(rateDen))
		if err := out.transfer(router, recipient, amountOut); err != nil {
			return nil, err
		}
		ret := amountOut.Bytes32()
		return ret[:], nil
	}
}
