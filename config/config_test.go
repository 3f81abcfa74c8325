package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"growspace/core/types"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "growspace.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "1000000", cfg.Rewards.RewardPerPeriod)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesSections(t *testing.T) {
	admin := types.Identity{0xAD}
	voter := types.Identity{0x0A}
	path := filepath.Join(t.TempDir(), "growspace.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"
IndexerDSN = "index.db"

[Rewards]
RewardPerPeriod = "2500000"
PeriodDurationSeconds = 10

[Rent]
StorageOverheadBytes = 128
LamportsPerByteYear = 3480
ExemptionYears = 2

[Auth]
Enabled = true
HMACSecret = "s3cret"
Issuer = "growspace"

[RateLimit]
RequestsPerMinute = 120
Burst = 10

[Genesis]
Admin = "` + admin.String() + `"
TreasuryFunding = "5000000"

[[Genesis.Balances]]
Identity = "` + admin.String() + `"
Amount = "10000000"

[[Genesis.Balances]]
Identity = "` + voter.String() + `"
Amount = "42"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "index.db", cfg.IndexerDSN)
	require.Equal(t, "s3cret", cfg.Auth.Secret())

	params, err := cfg.GrowspaceParams()
	require.NoError(t, err)
	require.Equal(t, uint64(2_500_000), params.RewardPerPeriod.Uint64())
	require.Equal(t, uint64(10), params.PeriodDurationSeconds)
	require.Equal(t, uint64(10*1024*1024), params.Rent.MaxRecordSize)

	allocations, err := cfg.Genesis.Allocations()
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	require.Equal(t, voter, allocations[1].Identity)
	require.Equal(t, uint64(42), allocations[1].Amount.Uint64())

	gotAdmin, funding, ok, err := cfg.Genesis.Treasury()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, admin, gotAdmin)
	require.Equal(t, uint64(5_000_000), funding.Uint64())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "Bogus = 1\n",
		"bad reward":      "[Rewards]\nRewardPerPeriod = \"-5\"\n",
		"auth no secret":  "[Auth]\nEnabled = true\n",
		"bad identity":    "[[Genesis.Balances]]\nIdentity = \"nope\"\nAmount = \"1\"\n",
		"bad sample rate": "[Telemetry]\nSampleRatio = 2.0\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "growspace.toml")
			require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestAuthSecretPrefersEnv(t *testing.T) {
	t.Setenv("GROWSPACE_TEST_SECRET", "from-env")
	auth := AuthConfig{HMACSecret: "inline", HMACSecretEnv: "GROWSPACE_TEST_SECRET"}
	require.Equal(t, "from-env", auth.Secret())
}
