package rotatelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteLineAppendsStampedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")

	f, err := Open(path, DefaultMaxSize)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.WriteLine("hello"))
	require.NoError(t, f.WriteLine("world"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "hello")
	require.Contains(t, lines[1], "world")
}

func TestRotatesToOldSiblingWhenOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")

	f, err := Open(path, 10) // tiny threshold to force rotation
	require.NoError(t, err)

	require.NoError(t, f.WriteLine("this line is definitely longer than ten bytes"))
	require.NoError(t, f.WriteLine("second line triggers rotation of the first"))
	require.NoError(t, f.Close())

	_, err = os.Stat(path + ".old")
	require.NoError(t, err, "expected a .old sibling after exceeding the size threshold")
}

func TestOpenRotatesPreexistingOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o644))

	f, err := Open(path, 10)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(path + ".old")
	require.NoError(t, err)
}
