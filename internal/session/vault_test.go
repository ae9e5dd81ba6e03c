package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := NewVault(filepath.Join(dir, "session.key"))
	path := filepath.Join(dir, "sessions", "acc.dat")

	require.NoError(t, v.Seal(path, []byte("auth state")))

	got, err := v.Open(path)
	require.NoError(t, err)
	require.Equal(t, []byte("auth state"), got)
}

func TestSealCreatesKeyOnce(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "session.key")
	v := NewVault(keyPath)

	require.NoError(t, v.Seal(filepath.Join(dir, "a.dat"), []byte("a")))
	key1, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	require.Len(t, key1, keySize)

	require.NoError(t, v.Seal(filepath.Join(dir, "b.dat"), []byte("b")))
	key2, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	require.Equal(t, key1, key2)
}

func TestOpenMissingSession(t *testing.T) {
	dir := t.TempDir()
	v := NewVault(filepath.Join(dir, "session.key"))

	_, err := v.Open(filepath.Join(dir, "missing.dat"))
	require.ErrorIs(t, err, ErrNoSession)
}

func TestOpenTamperedBlobFailsClosed(t *testing.T) {
	dir := t.TempDir()
	v := NewVault(filepath.Join(dir, "session.key"))
	path := filepath.Join(dir, "acc.dat")
	require.NoError(t, v.Seal(path, []byte("auth state")))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	_, err = v.Open(path)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenTruncatedBlobFailsClosed(t *testing.T) {
	dir := t.TempDir()
	v := NewVault(filepath.Join(dir, "session.key"))
	path := filepath.Join(dir, "acc.dat")
	require.NoError(t, v.Seal(path, []byte("auth state")))

	require.NoError(t, os.WriteFile(path, []byte("SKL"), 0o600))
	_, err := v.Open(path)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	dir := t.TempDir()
	v := NewVault(filepath.Join(dir, "session.key"))
	require.NoError(t, v.Remove(filepath.Join(dir, "missing.dat")))
}

func TestPrompterLineAndSecretFallback(t *testing.T) {
	var out strings.Builder
	p := &Prompter{In: strings.NewReader("+4791234567\nhunter2\n"), Out: &out}

	phone, err := p.Line("Phone: ")
	require.NoError(t, err)
	require.Equal(t, "+4791234567", phone)

	// A non-terminal reader falls back to a plain line read.
	secret, err := p.Secret("Password: ")
	require.NoError(t, err)
	require.Equal(t, "hunter2", secret)

	require.Contains(t, out.String(), "Phone: ")
	require.Contains(t, out.String(), "Password: ")
}
