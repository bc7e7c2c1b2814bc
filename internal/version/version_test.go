package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()
	oldV, oldC, oldD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = oldV, oldC, oldD })
}

func TestDefaults(t *testing.T) {
	require.Equal(t, "dev", GetVersion())
	require.Equal(t, "version=dev commit=unknown date=unknown", String())
}

func TestLdflagsValues(t *testing.T) {
	withBuildInfo(t, "v1.4.0", "9f1c2ab", "2024-03-01T10:00:00Z")

	require.Equal(t, "v1.4.0", GetVersion())
	require.Equal(t, "version=v1.4.0 commit=9f1c2ab date=2024-03-01T10:00:00Z", String())
	require.Equal(t, map[string]any{
		"version": "v1.4.0",
		"commit":  "9f1c2ab",
		"built":   "2024-03-01T10:00:00Z",
	}, Fields())
}
