package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
)

func TestDumpThenLoadRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/nodecore"
	cfg.Network = consensus.Testnet
	cfg.ReaderThreads = 8

	blob, err := Dump(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nodecore.toml")
	require.NoError(t, os.WriteFile(path, blob, 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadFileRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("NotAField = true\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissingPathErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
