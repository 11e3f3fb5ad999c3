// Package plan defines the JSON execution plan consumed by the CLI: a world
// description (native balances, tokens, routers) plus the batch to run
// against it, and optional registry entries to install first.
package plan

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aggrex/aggrex/internal/engine"
	"github.com/aggrex/aggrex/internal/host"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Plan is one complete simulation scenario.
type Plan struct {
	Caller   string            `json:"caller"`
	Native   map[string]string `json:"native,omitempty"`
	Tokens   []Token           `json:"tokens,omitempty"`
	Routers  []Router          `json:"routers,omitempty"`
	Registry *Registry         `json:"registry,omitempty"`
	Batch    Batch             `json:"batch"`
}

// Token describes one token contract and its starting state.
type Token struct {
	Address             string            `json:"address"`
	OmitReturnData      bool              `json:"omit_return_data,omitempty"`
	RequireZeroApproval bool              `json:"require_zero_approval,omitempty"`
	Balances            map[string]string `json:"balances,omitempty"`
	Allowances          []Allowance       `json:"allowances,omitempty"`
}

// Allowance is one owner-to-spender grant in a token's starting state.
type Allowance struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Router describes a fixed-rate swap counterparty and its output inventory.
type Router struct {
	Address   string `json:"address"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	RateNum   uint64 `json:"rate_num"`
	RateDen   uint64 `json:"rate_den"`
	Inventory string `json:"inventory,omitempty"`
}

// Registry lists whitelist targets and injection offsets to install before
// the batch runs.
type Registry struct {
	Targets []string `json:"targets,omitempty"`
	Offsets []Offset `json:"offsets,omitempty"`
}

// Offset registers the injection offset of a function, named either by
// canonical signature or raw selector hex.
type Offset struct {
	Sig      string `json:"sig,omitempty"`
	Selector string `json:"selector,omitempty"`
	Offset   int    `json:"offset"`
}

// Batch mirrors the engine batch in JSON form.
type Batch struct {
	Value       string     `json:"value,omitempty"`
	Pulls       []Pull     `json:"pulls,omitempty"`
	Approvals   []Approval `json:"approvals,omitempty"`
	Calls       []Call     `json:"calls,omitempty"`
	FlushTokens []string   `json:"flush_tokens,omitempty"`
}

// Pull is one token pull instruction.
type Pull struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Approval is one temporary spending grant.
type Approval struct {
	Token       string `json:"token"`
	Spender     string `json:"spender"`
	Amount      string `json:"amount"`
	RevokeAfter bool   `json:"revoke_after,omitempty"`
}

// Call is one batched call. The payload is either raw hex or a Swap
// convenience form that encodes the router's swap entry point.
type Call struct {
	Target       string `json:"target"`
	Value        string `json:"value,omitempty"`
	Payload      string `json:"payload,omitempty"`
	Swap         *Swap  `json:"swap,omitempty"`
	InjectToken  string `json:"inject_token,omitempty"`
	InjectOffset int    `json:"inject_offset,omitempty"`
}

// Swap encodes a call to the router swap entry point.
type Swap struct {
	AmountIn  string `json:"amount_in"`
	Recipient string `json:"recipient"`
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if _, err := p.CallerAddress(); err != nil {
		return nil, err
	}
	return &p, nil
}

// CallerAddress parses the plan's caller.
func (p *Plan) CallerAddress() (common.Address, error) {
	return parseAddress(p.Caller, "caller")
}

// BuildLedger materializes the plan's world into a fresh ledger.
func (p *Plan) BuildLedger() (*host.Ledger, error) {
	l := host.NewLedger()

	for holder, amt := range p.Native {
		addr, err := parseAddress(holder, "native holder")
		if err != nil {
			return nil, err
		}
		v, err := parseAmount(amt)
		if err != nil {
			return nil, fmt.Errorf("native balance of %s: %w", holder, err)
		}
		l.SetNativeBalance(addr, v)
	}

	for _, t := range p.Tokens {
		addr, err := parseAddress(t.Address, "token")
		if err != nil {
			return nil, err
		}
		l.AddTokenWithConfig(addr, host.TokenConfig{
			OmitReturnData:      t.OmitReturnData,
			RequireZeroApproval: t.RequireZeroApproval,
		})
		for holder, amt := range t.Balances {
			h, err := parseAddress(holder, "token holder")
			if err != nil {
				return nil, err
			}
			v, err := parseAmount(amt)
			if err != nil {
				return nil, fmt.Errorf("balance of %s on %s: %w", holder, t.Address, err)
			}
			l.Mint(addr, h, v)
		}
		for _, a := range t.Allowances {
			owner, err := parseAddress(a.Owner, "allowance owner")
			if err != nil {
				return nil, err
			}
			spender, err := parseAddress(a.Spender, "allowance spender")
			if err != nil {
				return nil, err
			}
			v, err := parseAmount(a.Amount)
			if err != nil {
				return nil, fmt.Errorf("allowance on %s: %w", t.Address, err)
			}
			l.SetAllowance(addr, owner, spender, v)
		}
	}

	for _, r := range p.Routers {
		addr, err := parseAddress(r.Address, "router")
		if err != nil {
			return nil, err
		}
		in, err := parseAddress(r.TokenIn, "router token_in")
		if err != nil {
			return nil, err
		}
		out, err := parseAddress(r.TokenOut, "router token_out")
		if err != nil {
			return nil, err
		}
		if r.RateDen == 0 {
			return nil, fmt.Errorf("router %s: zero rate denominator", r.Address)
		}
		l.SetHandler(addr, host.NewSwapRouter(addr, in, out, r.RateNum, r.RateDen))
		if r.Inventory != "" {
			v, err := parseAmount(r.Inventory)
			if err != nil {
				return nil, fmt.Errorf("router %s inventory: %w", r.Address, err)
			}
			l.Mint(out, addr, v)
		}
	}
	return l, nil
}

// ApplyRegistry installs the plan's whitelist targets and offsets.
func (p *Plan) ApplyRegistry(reg *registry.Registry, actor common.Address) error {
	if p.Registry == nil {
		return nil
	}
	for _, t := range p.Registry.Targets {
		addr, err := parseAddress(t, "registry target")
		if err != nil {
			return err
		}
		if err := reg.AddTarget(actor, addr); err != nil {
			return err
		}
	}
	for _, o := range p.Registry.Offsets {
		sel, err := o.selector()
		if err != nil {
			return err
		}
		if err := reg.SetOffset(actor, sel, o.Offset); err != nil {
			return err
		}
	}
	return nil
}

// BuildBatch converts the plan's batch into engine form.
func (p *Plan) BuildBatch() (engine.Batch, error) {
	var b engine.Batch
	var err error

	if b.Value, err = parseOptionalAmount(p.Batch.Value); err != nil {
		return b, fmt.Errorf("batch value: %w", err)
	}
	for _, pull := range p.Batch.Pulls {
		token, err := parseAddress(pull.Token, "pull token")
		if err != nil {
			return b, err
		}
		v, err := parseAmount(pull.Amount)
		if err != nil {
			return b, fmt.Errorf("pull of %s: %w", pull.Token, err)
		}
		b.Pulls = append(b.Pulls, engine.TokenPull{Token: token, Amount: v})
	}
	for _, a := range p.Batch.Approvals {
		token, err := parseAddress(a.Token, "approval token")
		if err != nil {
			return b, err
		}
		spender, err := parseAddress(a.Spender, "approval spender")
		if err != nil {
			return b, err
		}
		v, err := parseAmount(a.Amount)
		if err != nil {
			return b, fmt.Errorf("approval of %s: %w", a.Token, err)
		}
		b.Approvals = append(b.Approvals, engine.Approval{
			Token:       token,
			Spender:     spender,
			Amount:      v,
			RevokeAfter: a.RevokeAfter,
		})
	}
	for i, c := range p.Batch.Calls {
		call, err := c.build()
		if err != nil {
			return b, fmt.Errorf("call %d: %w", i, err)
		}
		b.Calls = append(b.Calls, call)
	}
	for _, t := range p.Batch.FlushTokens {
		addr, err := parseAddress(t, "flush token")
		if err != nil {
			return b, err
		}
		b.FlushTokens = append(b.FlushTokens, addr)
	}
	return b, nil
}

// --- helpers ---

func (c *Call) build() (engine.Call, error) {
	var out engine.Call
	var err error

	if out.Target, err = parseAddress(c.Target, "target"); err != nil {
		return out, err
	}
	if out.Value, err = parseOptionalAmount(c.Value); err != nil {
		return out, fmt.Errorf("value: %w", err)
	}

	switch {
	case c.Swap != nil && c.Payload != "":
		return out, fmt.Errorf("both payload and swap given")
	case c.Swap != nil:
		amt, err := parseAmount(c.Swap.AmountIn)
		if err != nil {
			return out, fmt.Errorf("swap amount_in: %w", err)
		}
		rec, err := parseAddress(c.Swap.Recipient, "swap recipient")
		if err != nil {
			return out, err
		}
		out.Payload = host.PackSwapExactIn(amt, rec)
	case c.Payload != "":
		out.Payload, err = hex.DecodeString(strings.TrimPrefix(c.Payload, "0x"))
		if err != nil {
			return out, fmt.Errorf("payload: %w", err)
		}
	default:
		return out, fmt.Errorf("missing payload")
	}

	if c.InjectToken != "" {
		if out.InjectToken, err = parseAddress(c.InjectToken, "inject token"); err != nil {
			return out, err
		}
		out.InjectOffset = c.InjectOffset
	}
	return out, nil
}

func (o *Offset) selector() ([4]byte, error) {
	switch {
	case o.Sig != "" && o.Selector != "":
		return [4]byte{}, fmt.Errorf("offset entry names both sig and selector")
	case o.Sig != "":
		return engine.Selector(o.Sig), nil
	case o.Selector != "":
		return registry.ParseSelector(o.Selector)
	}
	return [4]byte{}, fmt.Errorf("offset entry names neither sig nor selector")
}

func parseAddress(s, what string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", what, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func parseOptionalAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(s)
}
