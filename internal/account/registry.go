// Package account manages the multi-account registry: which service accounts
// are known, which one is active, and where their sealed sessions live.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means no account matches the given id or phone.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate means an account with this phone already exists.
	ErrDuplicate = errors.New("account already registered")
	// ErrNoActive means the registry has no active account.
	ErrNoActive = errors.New("no active account")
)

// Account is one registered service account.
type Account struct {
	ID      string    `json:"id"`
	Phone   string    `json:"phone"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Label returns the display name, falling back to the phone number.
func (a Account) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Phone
}

type registryFile struct {
	Active   string    `json:"active,omitempty"`
	Accounts []Account `json:"accounts"`
}

// Registry persists accounts as a JSON file under the config directory.
type Registry struct {
	path string
	now  func() time.Time

	file registryFile
}

// Open loads the registry, creating an empty one when the file is missing.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read account registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.file); err != nil {
		return nil, fmt.Errorf("parse account registry: %w", err)
	}
	return r, nil
}

// List returns all registered accounts.
func (r *Registry) List() []Account {
	out := make([]Account, len(r.file.Accounts))
	copy(out, r.file.Accounts)
	return out
}

// Active returns the active account.
func (r *Registry) Active() (Account, error) {
	if r.file.Active == "" {
		return Account{}, ErrNoActive
	}
	for _, a := range r.file.Accounts {
		if a.ID == r.file.Active {
			return a, nil
		}
	}
	return Account{}, ErrNoActive
}

// Add registers a new account and makes it active when it is the first one.
func (r *Registry) Add(phone, name string) (Account, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Account{}, fmt.Errorf("phone is required")
	}
	for _, a := range r.file.Accounts {
		if a.Phone == phone {
			return Account{}, ErrDuplicate
		}
	}
	acc := Account{
		ID:      uuid.NewString(),
		Phone:   phone,
		Name:    strings.TrimSpace(name),
		AddedAt: r.now(),
	}
	r.file.Accounts = append(r.file.Accounts, acc)
	if r.file.Active == "" {
		r.file.Active = acc.ID
	}
	if err := r.save(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Switch makes the account with the given id or phone active.
func (r *Registry) Switch(key string) (Account, error) {
	for _, a := range r.file.Accounts {
		if a.ID == key || a.Phone == key {
			r.file.Active = a.ID
			if err := r.save(); err != nil {
				return Account{}, err
			}
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

// Remove deletes an account. When the active account is removed, the first
// remaining one becomes active.
func (r *Registry) Remove(key string) (Account, error) {
	for i, a := range r.file.Accounts {
		if a.ID == key || a.Phone == key {
			r.file.Accounts = append(r.file.Accounts[:i], r.file.Accounts[i+1:]...)
			if r.file.Active == a.ID {
				r.file.Active = ""
				if len(r.file.Accounts) > 0 {
					r.file.Active = r.file.Accounts[0].ID
				}
			}
			if err := r.save(); err != nil {
				return Account{}, err
			}
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	encoded, err := json.MarshalIndent(r.file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account registry: %w", err)
	}
	if err := os.WriteFile(r.path, encoded, 0o600); err != nil {
		return fmt.Errorf("write account registry: %w", err)
	}
	return nil
}

// SessionPath returns where the account's sealed session blob lives.
func SessionPath(sessionsDir string, acc Account) string {
	return filepath.Join(sessionsDir, acc.ID+".dat")
}

// MigrateLegacySession adopts a pre-registry session.dat: the session file is
// moved into the per-account layout and a registry entry is created for it.
// A missing legacy file is not an error.
func (r *Registry) MigrateLegacySession(legacyPath, sessionsDir, phone string) (Account, bool, error) {
	if _, err := os.Stat(legacyPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Account{}, false, nil
		}
		return Account{}, false, fmt.Errorf("stat legacy session: %w", err)
	}
	acc, err := r.Add(phone, "")
	if err != nil {
		return Account{}, false, err
	}
	if err := os.MkdirAll(sessionsDir, 0o700); err != nil {
		return Account{}, false, fmt.Errorf("create sessions directory: %w", err)
	}
	if err := os.Rename(legacyPath, SessionPath(sessionsDir, acc)); err != nil {
		return Account{}, false, fmt.Errorf("move legacy session: %w", err)
	}
	return acc, true, nil
}
