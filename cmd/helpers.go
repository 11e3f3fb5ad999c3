package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/aggrex/aggrex/internal/audit"
	"github.com/aggrex/aggrex/internal/keys"
	"github.com/aggrex/aggrex/internal/registry"
	"github.com/ethereum/go-ethereum/common"
)

const identitiesFile = "identities.json"

// openSink opens the persistent audit log.
func openSink() (audit.Sink, error) {
	return audit.OpenFile(cfg.AuditPath())
}

// openRegistry loads the persisted registry, recording mutations to the
// audit log.
func openRegistry() (*registry.Registry, error) {
	sink, err := openSink()
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	reg := registry.New(cfg.RegistryPath(), sink)
	if err := reg.Load(); err != nil {
		return nil, err
	}
	return reg, nil
}

func newKeysManager() *keys.Manager {
	store := keys.NewJSONStore(filepath.Join(cfg.Dir(), identitiesFile))
	return keys.NewManager(keys.WithStore(store))
}

// actorAddress resolves the --as flag: a raw hex address, a stored identity
// name, or the default identity when the flag is empty.
func actorAddress() (common.Address, error) {
	if common.IsHexAddress(asActor) {
		return common.HexToAddress(asActor), nil
	}
	mgr := newKeysManager()
	if asActor != "" {
		id, err := mgr.Get(asActor)
		if err != nil {
			return common.Address{}, fmt.Errorf("resolving --as %q: %w", asActor, err)
		}
		return id.Account(), nil
	}
	if id := mgr.Default(); id != nil {
		return id.Account(), nil
	}
	return common.Address{}, fmt.Errorf("no actor: pass --as or set a default identity")
}

func parseAddressArg(s, what string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", what, s)
	}
	return common.HexToAddress(s), nil
}
