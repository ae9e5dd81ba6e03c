// Package session stores service session blobs encrypted at rest. A random
// key file under the config directory is stretched per blob with argon2id,
// and blobs are sealed with XChaCha20-Poly1305.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrNoSession means no sealed session exists at the given path.
	ErrNoSession = errors.New("no session")
	// ErrCorrupt means the blob failed authentication or is malformed.
	ErrCorrupt = errors.New("session blob corrupt")
)

const (
	magic      = "SKLD1"
	keySize    = 32
	saltSize   = 16
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
)

// Vault seals and opens session blobs using a key file.
type Vault struct {
	keyPath string
}

// NewVault returns a vault backed by the key file at keyPath. The key is
// created on first seal.
func NewVault(keyPath string) *Vault {
	return &Vault{keyPath: keyPath}
}

// Seal encrypts plaintext and writes it to path atomically.
func (v *Vault) Seal(path string, plaintext []byte) error {
	key, err := v.loadOrCreateKey()
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(key, salt))
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, magic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plaintext, []byte(magic))

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Open reads and decrypts the sealed blob at path.
func (v *Vault) Open(path string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	key, err := v.loadKey()
	if err != nil {
		return nil, err
	}

	minLen := len(magic) + saltSize + chacha20poly1305.NonceSizeX
	if len(blob) < minLen || string(blob[:len(magic)]) != magic {
		return nil, ErrCorrupt
	}
	salt := blob[len(magic) : len(magic)+saltSize]
	nonce := blob[len(magic)+saltSize : minLen]
	ciphertext := blob[minLen:]

	aead, err := chacha20poly1305.NewX(deriveKey(key, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(magic))
	if err != nil {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}

// Remove deletes a sealed session. Missing files are not an error.
func (v *Vault) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func deriveKey(key, salt []byte) []byte {
	return argon2.IDKey(key, salt, argonTime, argonMem, argonLanes, keySize)
}

func (v *Vault) loadKey() ([]byte, error) {
	key, err := os.ReadFile(v.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read session key: %w", err)
	}
	if len(key) != keySize {
		return nil, ErrCorrupt
	}
	return key, nil
}

func (v *Vault) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(v.keyPath)
	if err == nil {
		if len(key) != keySize {
			return nil, ErrCorrupt
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(v.keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(v.keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}
	return key, nil
}
