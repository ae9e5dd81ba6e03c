package styles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupKnownThemes(t *testing.T) {
	for _, name := range []string{"default", "dark", "light"} {
		theme := Lookup(name)
		require.Equal(t, name, theme.Name)
	}
}

func TestLookupFallsBackToDefault(t *testing.T) {
	require.Equal(t, "default", Lookup("matrix").Name)
	require.Equal(t, "default", Lookup("").Name)
}
