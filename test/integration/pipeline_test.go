package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/aggrex/aggrex/test/fixtures"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000aEE01")
	tokenB     = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

// TestSwapPlanThroughPersistedRegistry drives the whole stack the way the
// CLI does: registry persisted to disk and reloaded, audit log on disk,
// world and batch from a plan file, execution through the engine.
func TestSwapPlanThroughPersistedRegistry(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")
	auditPath := filepath.Join(dir, "audit.log")

	sink, err := audit.OpenFile(auditPath)
	require.NoError(t, err)

	p := fixtures.LoadPlan(t, "swap.json")

	// Administer the registry and persist it.
	reg := registry.New(regPath, sink)
	require.NoError(t, reg.TransferAdmin(adminAddr, adminAddr))
	require.NoError(t, p.ApplyRegistry(reg, adminAddr))
	require.NoError(t, reg.Save())

	// A fresh process would reload it from disk.
	reloaded := registry.New(regPath, sink)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, adminAddr, reloaded.Admin())

	ledger, err := p.BuildLedger()
	require.NoError(t, err)
	batch, err := p.BuildBatch()
	require.NoError(t, err)
	caller, err := p.CallerAddress()
	require.NoError(t, err)

	eng := engine.New(ledger, reloaded, engineAddr, engine.Limits{}, sink)
	results, err := eng.Execute(context.Background(), caller, batch)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 100 A in at 2:1 → 200 B flushed to the caller.
	assert.Equal(t, uint256.NewInt(200), ledger.BalanceOf(tokenB, caller))

	// Registry mutations and the execution all hit the audit log.
	events, err := audit.ReadFile(auditPath)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	kinds := make(map[string]int)
	for _, e := range events {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[audit.KindAdminTransfer])
	assert.Equal(t, 1, kinds[audit.KindWhitelistAdd])
	assert.Equal(t, 1, kinds[audit.KindOffsetSet])
	assert.Equal(t, 1, kinds[audit.KindExecute])
}

func TestFailingPlanLeavesWorldUntouched(t *testing.T) {
	p := fixtures.LoadPlan(t, "failing.json")

	ledger, err := p.BuildLedger()
	require.NoError(t, err)
	batch, err := p.BuildBatch()
	require.NoError(t, err)
	caller, err := p.CallerAddress()
	require.NoError(t, err)

	reg := registry.New("", nil)
	eng := engine.New(ledger, reg, engineAddr, engine.Limits{}, nil)

	// The plan never grants the engine an allowance, so the pull fails.
	_, err = eng.Execute(context.Background(), caller, batch)
	require.ErrorIs(t, err, engine.ErrTokenPullFailed)

	tokenA := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	assert.Equal(t, uint256.NewInt(100), ledger.BalanceOf(tokenA, caller))
	assert.Equal(t, uint256.NewInt(0), ledger.BalanceOf(tokenA, engineAddr))
}
