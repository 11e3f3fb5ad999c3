package keys

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Errors.
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrInvalidKey       = errors.New("invalid private key")
)

// Identity holds metadata for a single stored actor.
type Identity struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	KeyRef    string `json:"key_ref,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Account parses the identity's address.
func (id *Identity) Account() common.Address {
	return common.HexToAddress(id.Address)
}

// Store persists identities.
type Store interface {
	Load() ([]*Identity, error)
	Save([]*Identity) error
}

// Manager handles identity CRUD.
type Manager struct {
	store      Store
	keystore   KeyStore
	identities map[string]*Identity
	loaded     bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets a custom store.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithKeystore sets a custom keystore.
func WithKeystore(ks KeyStore) Option {
	return func(m *Manager) {
		m.keystore = ks
	}
}

// NewManager creates an identity manager. Without options it keeps
// identities in memory and keys in the OS keychain.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		identities: make(map[string]*Identity),
		store:      &memStore{},
		keystore:   DefaultKeystore(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate creates a fresh key, derives its address and stores both.
func (m *Manager) Generate(name string) (*Identity, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return m.Import(name, hex.EncodeToString(crypto.FromECDSA(priv)))
}

// Import derives the address from a hex private key and stores the identity.
// The key itself goes to the keystore.
func (m *Manager) Import(name, hexKey string) (*Identity, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	if _, exists := m.identities[name]; exists {
		return nil, ErrIdentityExists
	}

	priv, err := crypto.HexToECDSA(stripHexPrefix(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	ref, err := m.keystore.Store(name, hexKey)
	if err != nil {
		return nil, fmt.Errorf("storing key: %w", err)
	}

	id := &Identity{
		Name:      name,
		Address:   addr,
		KeyRef:    ref,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	m.identities[name] = id
	return id, m.persist()
}

// AddWatchOnly registers an identity by address, without a key.
func (m *Manager) AddWatchOnly(name string, addr common.Address) (*Identity, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	if _, exists := m.identities[name]; exists {
		return nil, ErrIdentityExists
	}
	id := &Identity{
		Name:      name,
		Address:   addr.Hex(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	m.identities[name] = id
	return id, m.persist()
}

// Get returns an identity by name.
func (m *Manager) Get(name string) (*Identity, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	id, ok := m.identities[name]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return id, nil
}

// Remove deletes an identity and its stored key.
func (m *Manager) Remove(name string) error {
	if err := m.load(); err != nil {
		return err
	}
	id, ok := m.identities[name]
	if !ok {
		return ErrIdentityNotFound
	}
	if id.KeyRef != "" {
		if err := m.keystore.Delete(id.KeyRef); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
	}
	delete(m.identities, name)
	return m.persist()
}

// List returns all identities sorted by name.
func (m *Manager) List() []*Identity {
	m.load() //nolint:errcheck
	out := make([]*Identity, 0, len(m.identities))
	for _, id := range m.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDefault marks an identity as the default actor.
func (m *Manager) SetDefault(name string) error {
	if err := m.load(); err != nil {
		return err
	}
	if _, ok := m.identities[name]; !ok {
		return ErrIdentityNotFound
	}
	for _, id := range m.identities {
		id.IsDefault = id.Name == name
	}
	return m.persist()
}

// Default returns the default identity, or nil if none.
func (m *Manager) Default() *Identity {
	m.load() //nolint:errcheck
	for _, id := range m.identities {
		if id.IsDefault {
			return id
		}
	}
	// Fallback: return the only identity if exactly one exists.
	if len(m.identities) == 1 {
		for _, id := range m.identities {
			return id
		}
	}
	return nil
}

// --- internal ---

func (m *Manager) load() error {
	if m.loaded {
		return nil
	}
	ids, err := m.store.Load()
	if err != nil {
		return err
	}
	for _, id := range ids {
		m.identities[id.Name] = id
	}
	m.loaded = true
	return nil
}

func (m *Manager) persist() error {
	ids := make([]*Identity, 0, len(m.identities))
	for _, id := range m.identities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return m.store.Save(ids)
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}

// --- in-memory store ---

type memStore struct {
	ids []*Identity
}

func (s *memStore) Load() ([]*Identity, error) {
	return s.ids, nil
}

func (s *memStore) Save(ids []*Identity) error {
	s.ids = ids
	return nil
}

// --- JSON file store ---

// JSONStore persists identities to a JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed identity store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load() ([]*Identity, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []*Identity
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *JSONStore) Save(ids []*Identity) error {
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
