package host

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token = common.HexToAddress("0x0000000000000000000000000000000000000101")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func packCall(sig string, words ...[32]byte) []byte {
	sel := keccakSelector(sig)
	out := append([]byte{}, sel[:]...)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

func addrWord(a common.Address) (w [32]byte) {
	copy(w[12:], a.Bytes())
	return w
}

func TestNativeTransfer(t *testing.T) {
	l := NewLedger()
	l.SetNativeBalance(alice, u(100))

	require.NoError(t, l.NativeTransfer(alice, bob, u(40)))
	assert.Equal(t, u(60), l.NativeBalance(alice))
	assert.Equal(t, u(40), l.NativeBalance(bob))

	err := l.NativeTransfer(alice, bob, u(1000))
	assert.ErrorIs(t, err, ErrInsufficientNative)
}

func TestTokenTransferCalldata(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)
	l.Mint(token, alice, u(50))

	ret, err := l.Call(alice, token, nil, packCall("transfer(address,uint256)", addrWord(bob), u(20).Bytes32()))
	require.NoError(t, err)
	assert.Equal(t, u(1).Bytes32(), [32]byte(ret))
	assert.Equal(t, u(30), l.BalanceOf(token, alice))
	assert.Equal(t, u(20), l.BalanceOf(token, bob))

	_, err = l.Call(alice, token, nil, packCall("transfer(address,uint256)", addrWord(bob), u(999).Bytes32()))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)
	l.Mint(token, alice, u(50))

	// No allowance yet.
	pull := packCall("transferFrom(address,address,uint256)", addrWord(alice), addrWord(bob), u(10).Bytes32())
	_, err := l.Call(bob, token, nil, pull)
	assert.ErrorIs(t, err, ErrInsufficientApproval)

	_, err = l.Call(alice, token, nil, packCall("approve(address,uint256)", addrWord(bob), u(30).Bytes32()))
	require.NoError(t, err)
	assert.Equal(t, u(30), l.Allowance(token, alice, bob))

	_, err = l.Call(bob, token, nil, pull)
	require.NoError(t, err)
	assert.Equal(t, u(20), l.Allowance(token, alice, bob))
	assert.Equal(t, u(10), l.BalanceOf(token, bob))
}

func TestBalanceOfAndAllowanceViews(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)
	l.Mint(token, alice, u(77))

	ret, err := l.Call(bob, token, nil, packCall("balanceOf(address)", addrWord(alice)))
	require.NoError(t, err)
	assert.Equal(t, u(77).Bytes32(), [32]byte(ret))

	ret, err = l.Call(bob, token, nil, packCall("allowance(address,address)", addrWord(alice), addrWord(bob)))
	require.NoError(t, err)
	assert.Equal(t, u(0).Bytes32(), [32]byte(ret))
}

func TestOmitReturnDataToken(t *testing.T) {
	l := NewLedger()
	l.AddTokenWithConfig(token, TokenConfig{OmitReturnData: true})
	l.Mint(token, alice, u(5))

	ret, err := l.Call(alice, token, nil, packCall("transfer(address,uint256)", addrWord(bob), u(5).Bytes32()))
	require.NoError(t, err)
	assert.Empty(t, ret)
}

func TestRequireZeroApprovalToken(t *testing.T) {
	l := NewLedger()
	l.AddTokenWithConfig(token, TokenConfig{RequireZeroApproval: true})

	approve := func(amt uint64) error {
		_, err := l.Call(alice, token, nil, packCall("approve(address,uint256)", addrWord(bob), u(amt).Bytes32()))
		return err
	}
	require.NoError(t, approve(10))
	assert.ErrorIs(t, approve(20), ErrNonZeroApproval)
	require.NoError(t, approve(0))
	require.NoError(t, approve(20))
}

func TestMalformedCalldata(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)

	_, err := l.Call(alice, token, nil, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrBadCalldata)

	_, err = l.Call(alice, token, nil, packCall("name()"))
	assert.ErrorIs(t, err, ErrBadCalldata)
}

func TestCallUnknownTarget(t *testing.T) {
	l := NewLedger()
	_, err := l.Call(alice, bob, nil, []byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestFailedCallLeavesNoTrace(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)
	l.SetNativeBalance(alice, u(100))
	handler := common.HexToAddress("0x0000000000000000000000000000000000000202")
	l.SetHandler(handler, func(env *CallEnv) ([]byte, error) {
		return nil, ErrBadCalldata
	})

	// Value is credited before the handler runs; the failure must unwind it.
	_, err := l.Call(alice, handler, u(25), []byte{1, 2, 3, 4})
	require.Error(t, err)
	assert.Equal(t, u(100), l.NativeBalance(alice))
	assert.Equal(t, u(0), l.NativeBalance(handler))
}

func TestSnapshotRevert(t *testing.T) {
	l := NewLedger()
	l.AddToken(token)
	l.Mint(token, alice, u(50))
	l.SetNativeBalance(alice, u(10))

	id := l.Snapshot()
	require.NoError(t, l.NativeTransfer(alice, bob, u(10)))
	_, err := l.Call(alice, token, nil, packCall("transfer(address,uint256)", addrWord(bob), u(50).Bytes32()))
	require.NoError(t, err)

	l.RevertToSnapshot(id)
	assert.Equal(t, u(10), l.NativeBalance(alice))
	assert.Equal(t, u(50), l.BalanceOf(token, alice))
	assert.Equal(t, u(0), l.BalanceOf(token, bob))
}

func TestSwapRouter(t *testing.T) {
	tokenOut := common.HexToAddress("0x0000000000000000000000000000000000000102")
	router := common.HexToAddress("0x0000000000000000000000000000000000000303")

	l := NewLedger()
	l.AddToken(token)
	l.AddToken(tokenOut)
	l.SetHandler(router, NewSwapRouter(router, token, tokenOut, 2, 1))
	l.Mint(token, alice, u(100))
	l.Mint(tokenOut, router, u(1000))

	_, err := l.Call(alice, token, nil, packCall("approve(address,uint256)", addrWord(router), u(100).Bytes32()))
	require.NoError(t, err)

	ret, err := l.Call(alice, router, nil, PackSwapExactIn(u(100), alice))
	require.NoError(t, err)
	assert.Equal(t, u(200).Bytes32(), [32]byte(ret))
	assert.Equal(t, u(0), l.BalanceOf(token, alice))
	assert.Equal(t, u(100), l.BalanceOf(token, router))
	assert.Equal(t, u(200), l.BalanceOf(tokenOut, alice))

	// Swapping without an approval fails and moves nothing.
	l.Mint(token, bob, u(10))
	_, err = l.Call(bob, router, nil, PackSwapExactIn(u(10), bob))
	assert.ErrorIs(t, err, ErrInsufficientApproval)
	assert.Equal(t, u(10), l.BalanceOf(token, bob))
}
