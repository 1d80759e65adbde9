package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.True(t, cfg.DevMode)
	require.Equal(t, uint64(2_000), cfg.Protocol.AdvanceRateBps)
	require.Equal(t, uint64(500), cfg.Protocol.InterestRateBps)
	require.Equal(t, uint64(365), cfg.Protocol.NoteTermDays)

	ceiling, _ := new(big.Int).SetString("5000000000000000000", 10)
	require.Equal(t, 0, cfg.Protocol.MaxPrincipalWei.Cmp(ceiling))
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/credora"
Env = "staging"

[protocol]
MaxPrincipalWei = "7000000000000000000"
AdvanceRateBps = 2500
InterestRateBps = 750
NoteTermDays = 180
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "/var/lib/credora", cfg.DataDir)
	require.Equal(t, "staging", cfg.Env)
	require.False(t, cfg.DevMode)
	require.Equal(t, uint64(2500), cfg.Protocol.AdvanceRateBps)
	require.Equal(t, uint64(750), cfg.Protocol.InterestRateBps)
	require.Equal(t, uint64(180), cfg.Protocol.NoteTermDays)

	want, _ := new(big.Int).SetString("7000000000000000000", 10)
	require.Equal(t, 0, cfg.Protocol.MaxPrincipalWei.Cmp(want))
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("Env = \"prod\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, uint64(2_000), cfg.Protocol.AdvanceRateBps)
}

func TestPauseView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[pauses]
Pool = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Pauses.IsPaused("pool"))
	require.False(t, cfg.Pauses.IsPaused("issuer"))
	require.False(t, cfg.Pauses.IsPaused("unknown"))
}

func TestValidateRejectsBadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[protocol]
AdvanceRateBps = 10001
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	contents = `
[protocol]
InterestRateBps = 20000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}
