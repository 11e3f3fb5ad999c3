package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// file is the on-disk shape of the registry.
type file struct {
	Admin   string         `json:"admin,omitempty"`
	Paused  bool           `json:"paused,omitempty"`
	Targets []string       `json:"targets"`
	Offsets map[string]int `json:"offsets"`
}

// Load reads the registry state from its backing file. A missing file leaves
// the registry empty.
func (r *Registry) Load() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading registry: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing registry: %w", err)
	}

	targets := make(map[common.Address]struct{}, len(f.Targets))
	for _, t := range f.Targets {
		if !common.IsHexAddress(t) {
			return fmt.Errorf("parsing registry: invalid target %q", t)
		}
		targets[common.HexToAddress(t)] = struct{}{}
	}
	offsets := make(map[[4]byte]int, len(f.Offsets))
	for selHex, off := range f.Offsets {
		sel, err := ParseSelector(selHex)
		if err != nil {
			return fmt.Errorf("parsing registry: %w", err)
		}
		if off < MinOffset {
			return fmt.Errorf("parsing registry: offset %d for %s below minimum", off, selHex)
		}
		offsets[sel] = off
	}

	var admin common.Address
	if f.Admin != "" {
		if !common.IsHexAddress(f.Admin) {
			return fmt.Errorf("parsing registry: invalid admin %q", f.Admin)
		}
		admin = common.HexToAddress(f.Admin)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.admin = admin
	r.paused = f.Paused
	r.targets = targets
	r.offsets = offsets
	return nil
}

// Save writes the registry state to its backing file.
func (r *Registry) Save() error {
	if r.path == "" {
		return nil
	}
	r.mu.RLock()
	f := file{
		Paused:  r.paused,
		Targets: make([]string, 0, len(r.targets)),
		Offsets: make(map[string]int, len(r.offsets)),
	}
	if r.admin != (common.Address{}) {
		f.Admin = r.admin.Hex()
	}
	for t := range r.targets {
		f.Targets = append(f.Targets, t.Hex())
	}
	for sel, off := range r.offsets {
		f.Offsets[selectorHex(sel)] = off
	}
	r.mu.RUnlock()
	sort.Strings(f.Targets)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating registry dir: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// --- helpers ---

func selectorHex(sel [4]byte) string {
	return "0x" + hex.EncodeToString(sel[:])
}

// ParseSelector decodes a 4-byte function identifier from hex, with or
// without the 0x prefix.
func ParseSelector(s string) ([4]byte, error) {
	var sel [4]byte
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 4 {
		return sel, fmt.Errorf("invalid selector %q", s)
	}
	copy(sel[:], b)
	return sel, nil
}
