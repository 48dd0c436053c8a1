//go:build linux

package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEntropyPaths(t *testing.T, dev, avail string) {
	t.Helper()
	od, oa := randomDevice, entropyAvailPath
	randomDevice, entropyAvailPath = dev, avail
	t.Cleanup(func() { randomDevice, entropyAvailPath = od, oa })
}

func TestSystemEntropy_FallsBackToProc(t *testing.T) {
	dir := t.TempDir()
	avail := filepath.Join(dir, "entropy_avail")
	require.NoError(t, os.WriteFile(avail, []byte("2400\n"), 0o600))
	withEntropyPaths(t, filepath.Join(dir, "missing"), avail)

	n, err := systemEntropy()
	require.NoError(t, err)
	assert.Equal(t, 2400, n)
}

func TestSystemEntropy_FallbackErrors(t *testing.T) {
	dir := t.TempDir()
	withEntropyPaths(t, filepath.Join(dir, "missing"), filepath.Join(dir, "missing-too"))
	_, err := systemEntropy()
	assert.Error(t, err)

	avail := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(avail, []byte("lots"), 0o600))
	withEntropyPaths(t, filepath.Join(dir, "missing"), avail)
	_, err = systemEntropy()
	assert.Error(t, err)
}

func TestSystemEntropy_IoctlOnRegularFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "not-a-device")
	require.NoError(t, os.WriteFile(dev, nil, 0o600))
	avail := filepath.Join(dir, "entropy_avail")
	require.NoError(t, os.WriteFile(avail, []byte("300"), 0o600))
	withEntropyPaths(t, dev, avail)

	n, err := systemEntropy()
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}
