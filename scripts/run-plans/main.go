// run-plans: executes a set of plan files through the engine in parallel
// and prints a summary table.
//
// Run from the module root:
//
//	go run ./scripts/run-plans test/fixtures/plans/*.json
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/plan"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/ethereum/go-ethereum/common"
)

var engineAddr = common.HexToAddress("0x00000000000000000000000000000000000aEE01")

type result struct {
	name    string
	calls   int
	flushed string
	err     string
}

func main() {
	paths := os.Args[1:]
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: run-plans <plan.json>...")
		os.Exit(2)
	}

	var (
		mu      sync.Mutex
		results []result
		wg      sync.WaitGroup
	)
	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			r := runPlan(path)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAN\tCALLS\tFLUSHED\tSTATUS")
	failed := 0
	for _, r := range results {
		status := "ok"
		if r.err != "" {
			status = "reverted: " + r.err
			failed++
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.name, r.calls, r.flushed, status)
	}
	w.Flush()

	if failed > 0 {
		os.Exit(1)
	}
}

func runPlan(path string) result {
	r := result{name: filepath.Base(path)}

	p, err := plan.Load(path)
	if err != nil {
		r.err = err.Error()
		return r
	}
	caller, err := p.CallerAddress()
	if err != nil {
		r.err = err.Error()
		return r
	}
	ledger, err := p.BuildLedger()
	if err != nil {
		r.err = err.Error()
		return r
	}
	batch, err := p.BuildBatch()
	if err != nil {
		r.err = err.Error()
		return r
	}

	reg := registry.New("", nil)
	if err := p.ApplyRegistry(reg, common.Address{}); err != nil {
		r.err = err.Error()
		return r
	}

	eng := engine.New(ledger, reg, engineAddr, engine.Limits{}, nil)
	results, err := eng.Execute(context.Background(), caller, batch)
	if err != nil {
		r.err = err.Error()
		return r
	}
	r.calls = len(results)

	for _, t := range batch.FlushTokens {
		if r.flushed != "" {
			r.flushed += " "
		}
		r.flushed += ledger.BalanceOf(t, caller).Dec()
	}
	if r.flushed == "" {
		r.flushed = "-"
	}
	return r
}
