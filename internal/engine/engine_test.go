package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/host"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	callerAddr = common.HexToAddress("0x00000000000000000000000000000000000000ca")
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	tokenA     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	tokenB     = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	tokenC     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	routerAddr = common.HexToAddress("0x0000000000000000000000000000000000000f01")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	ledger *host.Ledger
	reg    *registry.Registry
	sink   *audit.Memory
	eng    *engine.Engine
}

// newFixture wires a ledger with tokens A and B, an A-for-B router paying
// 2 B per A, and a registry that whitelists the router and registers the
// swap entry point for injection.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledger := host.NewLedger()
	ledger.AddToken(tokenA)
	ledger.AddToken(tokenB)
	ledger.SetHandler(routerAddr, host.NewSwapRouter(routerAddr, tokenA, tokenB, 2, 1))
	ledger.Mint(tokenB, routerAddr, u(1_000_000))

	reg := registry.New("", nil)
	require.NoError(t, reg.TransferAdmin(adminAddr, adminAddr))
	require.NoError(t, reg.AddTarget(adminAddr, routerAddr))
	require.NoError(t, reg.SetOffset(adminAddr, engine.Selector(host.SwapSig), host.SwapAmountOffset))

	sink := audit.NewMemory()
	return &fixture{
		ledger: ledger,
		reg:    reg,
		sink:   sink,
		eng:    engine.New(ledger, reg, engineAddr, engine.Limits{}, sink),
	}
}

// fund mints tokenA to the caller and approves the engine to pull it.
func (f *fixture) fund(amount uint64) {
	f.ledger.Mint(tokenA, callerAddr, u(amount))
	f.ledger.SetAllowance(tokenA, callerAddr, engineAddr, u(amount))
}

// swapBatch builds the canonical pull-approve-swap-flush batch: pull amount
// of tokenA, approve the router, swap with live-balance injection, flush
// tokenB.
func swapBatch(amount uint64) engine.Batch {
	return engine.Batch{
		Pulls:     []engine.TokenPull{{Token: tokenA, Amount: u(amount)}},
		Approvals: []engine.Approval{{Token: tokenA, Spender: routerAddr, Amount: u(amount), RevokeAfter: true}},
		Calls: []engine.Call{{
			Target:       routerAddr,
			Payload:      host.PackSwapExactIn(u(1), engineAddr),
			InjectToken:  tokenA,
			InjectOffset: host.SwapAmountOffset,
		}},
		FlushTokens: []common.Address{tokenB},
	}
}

func TestSwapEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.fund(100)

	results, err := f.eng.Execute(context.Background(), callerAddr, swapBatch(100))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, u(200).Bytes32(), [32]byte(results[0]))

	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenA, callerAddr))
	assert.Equal(t, u(200), f.ledger.BalanceOf(tokenB, callerAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenA, engineAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenB, engineAddr))
	// RevokeAfter cleared the router's spending rights.
	assert.Equal(t, u(0), f.ledger.Allowance(tokenA, engineAddr, routerAddr))
}

func TestExecuteRecordsAuditEvent(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	_, err := f.eng.Execute(context.Background(), callerAddr, swapBatch(10))
	require.NoError(t, err)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.KindExecute, events[0].Kind)
	assert.Equal(t, callerAddr.Hex(), events[0].Actor)
	assert.Equal(t, "1", events[0].Fields["pulls"])
}

func TestFailedCallRevertsEverything(t *testing.T) {
	f := newFixture(t)
	f.fund(100)
	f.ledger.SetNativeBalance(callerAddr, u(50))

	batch := swapBatch(100)
	// A second call to an unknown function makes the batch fail after the
	// swap already moved funds.
	batch.Calls = append(batch.Calls, engine.Call{
		Target:  routerAddr,
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	})
	batch.Value = u(50)

	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.Error(t, err)
	var callErr *engine.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, 1, callErr.Index)

	// Nothing moved: pulled tokens, attached value and approvals are all back.
	assert.Equal(t, u(100), f.ledger.BalanceOf(tokenA, callerAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenB, callerAddr))
	assert.Equal(t, u(50), f.ledger.NativeBalance(callerAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenA, engineAddr))
	assert.Equal(t, u(0), f.ledger.Allowance(tokenA, engineAddr, routerAddr))
}

func TestPullWithoutAllowanceFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.Mint(tokenA, callerAddr, u(100)) // no allowance granted

	_, err := f.eng.Execute(context.Background(), callerAddr, swapBatch(100))
	assert.ErrorIs(t, err, engine.ErrTokenPullFailed)
	assert.Equal(t, u(100), f.ledger.BalanceOf(tokenA, callerAddr))
}

func TestZeroAmountPullIssuesNoCall(t *testing.T) {
	f := newFixture(t)

	// tokenC does not exist on the ledger; a zero pull must not touch it.
	batch := engine.Batch{
		Pulls: []engine.TokenPull{{Token: tokenC, Amount: u(0)}, {Token: tokenC}},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)
}

func TestPausedEngineRejectsExecution(t *testing.T) {
	f := newFixture(t)
	f.fund(10)
	require.NoError(t, f.reg.SetPaused(adminAddr, true))

	_, err := f.eng.Execute(context.Background(), callerAddr, swapBatch(10))
	assert.ErrorIs(t, err, engine.ErrEnginePaused)

	require.NoError(t, f.reg.SetPaused(adminAddr, false))
	_, err = f.eng.Execute(context.Background(), callerAddr, swapBatch(10))
	assert.NoError(t, err)
}

func TestBatchLimits(t *testing.T) {
	f := newFixture(t)

	pulls := make([]engine.TokenPull, engine.DefaultLimits.MaxPulls+1)
	_, err := f.eng.Execute(context.Background(), callerAddr, engine.Batch{Pulls: pulls})
	assert.ErrorIs(t, err, engine.ErrBatchTooLarge)

	_, err = f.eng.Execute(context.Background(), callerAddr, engine.Batch{
		FlushTokens: []common.Address{tokenB, tokenB},
	})
	assert.ErrorIs(t, err, engine.ErrDuplicateFlush)
}

func TestCallTargetMustBeWhitelisted(t *testing.T) {
	f := newFixture(t)
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000666")

	_, err := f.eng.Execute(context.Background(), callerAddr, engine.Batch{
		Calls: []engine.Call{{Target: stranger, Payload: []byte{1, 2, 3, 4}}},
	})
	assert.ErrorIs(t, err, engine.ErrTargetNotWhitelisted)
}

func TestApprovalSpenderMustBeWhitelisted(t *testing.T) {
	f := newFixture(t)
	f.fund(10)
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000666")

	batch := swapBatch(10)
	batch.Approvals[0].Spender = stranger
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrSpenderNotWhitelisted)
}

func TestZeroAmountApprovalSkipsWhitelistCheck(t *testing.T) {
	f := newFixture(t)
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000666")

	_, err := f.eng.Execute(context.Background(), callerAddr, engine.Batch{
		Approvals: []engine.Approval{{Token: tokenA, Spender: stranger, Amount: u(0)}},
	})
	assert.NoError(t, err)
}

func TestApprovalLeftWithoutRevokeSurvives(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	batch := swapBatch(10)
	batch.Approvals[0].RevokeAfter = false
	batch.Approvals[0].Amount = u(100) // more than the swap consumes
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)

	// 10 were consumed by the swap's pull; the rest of the grant remains.
	assert.Equal(t, u(90), f.ledger.Allowance(tokenA, engineAddr, routerAddr))
}

// --- injection ---

func TestInjectionUnknownSelector(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	batch := swapBatch(10)
	batch.Calls[0].Payload = append([]byte{0x01, 0x02, 0x03, 0x04}, make([]byte, 64)...)
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrUnknownInjectionSelector)
}

func TestInjectionOffsetMismatch(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	batch := swapBatch(10)
	batch.Calls[0].InjectOffset = 36 // registered offset is 4
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrOffsetMismatch)
}

func TestInjectionOffsetBeyondPayload(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	sel := engine.Selector("shortPayload(uint256)")
	require.NoError(t, f.reg.SetOffset(adminAddr, sel, 16))

	payload := append(sel[:], make([]byte, 32)...) // 36 bytes; word at 16 would overrun
	batch := engine.Batch{
		Pulls: []engine.TokenPull{{Token: tokenA, Amount: u(10)}},
		Calls: []engine.Call{{
			Target:       routerAddr,
			Payload:      payload[:20],
			InjectToken:  tokenA,
			InjectOffset: 16,
		}},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrInvalidInjectionOffset)
}

func TestInjectionZeroAmount(t *testing.T) {
	f := newFixture(t)

	batch := engine.Batch{
		Calls: []engine.Call{{
			Target:       routerAddr,
			Payload:      host.PackSwapExactIn(u(1), engineAddr),
			InjectToken:  tokenA, // engine holds none
			InjectOffset: host.SwapAmountOffset,
		}},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrZeroInjectionAmount)
}

func TestInjectionCappedAtPulledAmount(t *testing.T) {
	f := newFixture(t)
	f.fund(100)
	// Resident balance the caller never brought in: the cap must keep the
	// injection from spending it, and dust safety must keep it resident.
	f.ledger.Mint(tokenA, engineAddr, u(40))

	batch := swapBatch(100)
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)

	// Only the pulled 100 were swapped (for 200 B); the resident 40 stayed.
	assert.Equal(t, u(200), f.ledger.BalanceOf(tokenB, callerAddr))
	assert.Equal(t, u(40), f.ledger.BalanceOf(tokenA, engineAddr))
}

func TestInjectionCoalescesDuplicatePulls(t *testing.T) {
	f := newFixture(t)
	f.fund(100)

	batch := swapBatch(100)
	batch.Pulls = []engine.TokenPull{
		{Token: tokenA, Amount: u(60)},
		{Token: tokenA, Amount: u(40)},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)
	assert.Equal(t, u(200), f.ledger.BalanceOf(tokenB, callerAddr))
}

func TestIntermediateTokenInjectsUncapped(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	// Second hop: B for C at 3:1.
	router2 := common.HexToAddress("0x0000000000000000000000000000000000000f02")
	f.ledger.AddToken(tokenC)
	f.ledger.SetHandler(router2, host.NewSwapRouter(router2, tokenB, tokenC, 3, 1))
	f.ledger.Mint(tokenC, router2, u(1_000_000))
	require.NoError(t, f.reg.AddTarget(adminAddr, router2))

	batch := engine.Batch{
		Pulls: []engine.TokenPull{{Token: tokenA, Amount: u(10)}},
		Approvals: []engine.Approval{
			{Token: tokenA, Spender: routerAddr, Amount: u(10), RevokeAfter: true},
			{Token: tokenB, Spender: router2, Amount: u(20), RevokeAfter: true},
		},
		Calls: []engine.Call{
			{
				Target:       routerAddr,
				Payload:      host.PackSwapExactIn(u(1), engineAddr),
				InjectToken:  tokenA,
				InjectOffset: host.SwapAmountOffset,
			},
			{
				Target:       router2,
				Payload:      host.PackSwapExactIn(u(1), engineAddr),
				InjectToken:  tokenB, // never pulled: full live balance flows
				InjectOffset: host.SwapAmountOffset,
			},
		},
		FlushTokens: []common.Address{tokenC},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)
	// 10 A -> 20 B -> 60 C, all the way through.
	assert.Equal(t, u(60), f.ledger.BalanceOf(tokenC, callerAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenB, engineAddr))
}

// --- flush accounting ---

func TestFlushOnlyReturnsDelta(t *testing.T) {
	f := newFixture(t)
	f.fund(10)
	// Resident output-token balance predating the execution.
	f.ledger.Mint(tokenB, engineAddr, u(500))

	_, err := f.eng.Execute(context.Background(), callerAddr, swapBatch(10))
	require.NoError(t, err)

	assert.Equal(t, u(20), f.ledger.BalanceOf(tokenB, callerAddr))
	assert.Equal(t, u(500), f.ledger.BalanceOf(tokenB, engineAddr))
}

func TestNativeFlushReturnsUnspentValue(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetNativeBalance(callerAddr, u(100))
	f.ledger.SetNativeBalance(engineAddr, u(77)) // resident, stays put

	spend := common.HexToAddress("0x0000000000000000000000000000000000000f03")
	f.ledger.SetHandler(spend, func(env *host.CallEnv) ([]byte, error) {
		return nil, nil // keeps the attached value
	})
	require.NoError(t, f.reg.AddTarget(adminAddr, spend))

	batch := engine.Batch{
		Value: u(30),
		Calls: []engine.Call{{Target: spend, Value: u(12), Payload: []byte{0, 0, 0, 0}}},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)

	// 30 attached, 12 spent, 18 returned; the resident 77 never moves.
	assert.Equal(t, u(88), f.ledger.NativeBalance(callerAddr))
	assert.Equal(t, u(77), f.ledger.NativeBalance(engineAddr))
	assert.Equal(t, u(12), f.ledger.NativeBalance(spend))
}

func TestNativeGainIsFlushed(t *testing.T) {
	f := newFixture(t)
	payer := common.HexToAddress("0x0000000000000000000000000000000000000f04")
	f.ledger.SetNativeBalance(payer, u(1000))
	f.ledger.SetHandler(payer, func(env *host.CallEnv) ([]byte, error) {
		return nil, env.Ledger.NativeTransfer(payer, engineAddr, u(25))
	})
	require.NoError(t, f.reg.AddTarget(adminAddr, payer))

	batch := engine.Batch{
		Calls: []engine.Call{{Target: payer, Payload: []byte{0, 0, 0, 0}}},
	}
	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	require.NoError(t, err)
	assert.Equal(t, u(25), f.ledger.NativeBalance(callerAddr))
}

// --- reentrancy ---

func TestReentrantExecutionFailsAndReverts(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	attacker := common.HexToAddress("0x0000000000000000000000000000000000000f05")
	f.ledger.SetHandler(attacker, func(env *host.CallEnv) ([]byte, error) {
		_, err := f.eng.Execute(context.Background(), callerAddr, engine.Batch{})
		return nil, err
	})
	require.NoError(t, f.reg.AddTarget(adminAddr, attacker))

	batch := swapBatch(10)
	batch.Calls = append(batch.Calls, engine.Call{Target: attacker, Payload: []byte{0, 0, 0, 0}})

	_, err := f.eng.Execute(context.Background(), callerAddr, batch)
	assert.ErrorIs(t, err, engine.ErrReentrantCall)

	// The outer execution reverted wholesale.
	assert.Equal(t, u(10), f.ledger.BalanceOf(tokenA, callerAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenB, callerAddr))

	// The guard resets after the abort.
	f.ledger.SetAllowance(tokenA, callerAddr, engineAddr, u(10))
	_, err = f.eng.Execute(context.Background(), callerAddr, swapBatch(10))
	assert.NoError(t, err)
}

func TestCancelledContextAbortsBeforeCall(t *testing.T) {
	f := newFixture(t)
	f.fund(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.eng.Execute(ctx, callerAddr, swapBatch(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, u(10), f.ledger.BalanceOf(tokenA, callerAddr))
}

func TestCallErrorPreservesRevertPayload(t *testing.T) {
	f := newFixture(t)

	revertData := []byte{0x08, 0xc3, 0x79, 0xa0, 0xff}
	failing := common.HexToAddress("0x0000000000000000000000000000000000000f06")
	f.ledger.SetHandler(failing, func(env *host.CallEnv) ([]byte, error) {
		return revertData, errors.New("deliberate failure")
	})
	require.NoError(t, f.reg.AddTarget(adminAddr, failing))

	_, err := f.eng.Execute(context.Background(), callerAddr, engine.Batch{
		Calls: []engine.Call{{Target: failing, Payload: []byte{0, 0, 0, 0}}},
	})
	var callErr *engine.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, revertData, callErr.Revert)
	assert.Equal(t, failing, callErr.Target)
}

// --- recover ---

func TestRecoverToken(t *testing.T) {
	f := newFixture(t)
	f.ledger.Mint(tokenA, engineAddr, u(123))

	_, err := f.eng.Recover(callerAddr, tokenA, callerAddr)
	assert.ErrorIs(t, err, engine.ErrNotAdmin)

	swept, err := f.eng.Recover(adminAddr, tokenA, adminAddr)
	require.NoError(t, err)
	assert.Equal(t, u(123), swept)
	assert.Equal(t, u(123), f.ledger.BalanceOf(tokenA, adminAddr))
	assert.Equal(t, u(0), f.ledger.BalanceOf(tokenA, engineAddr))
}

func TestRecoverNative(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetNativeBalance(engineAddr, u(55))

	swept, err := f.eng.Recover(adminAddr, common.Address{}, adminAddr)
	require.NoError(t, err)
	assert.Equal(t, u(55), swept)
	assert.Equal(t, u(55), f.ledger.NativeBalance(adminAddr))

	events := f.sink.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.KindRecover, events[len(events)-1].Kind)
}
