package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithJSONFileSink(t *testing.T) {
	dir := t.TempDir()
	err := Init(Options{JSONLogPath: filepath.Join(dir, "bridge.json.log")})
	require.NoError(t, err)

	Log.Info().Str("component", "test").Msg("hello")
}

func TestInitWithoutSinksDiscards(t *testing.T) {
	err := Init(Options{})
	require.NoError(t, err)
	Log.Info().Msg("discarded")
}

func TestWithSessionAddsFields(t *testing.T) {
	require.NoError(t, Init(Options{}))
	l := WithSession("sess-1", 3)
	l.Info().Msg("tagged")
}
