package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/native/growspace"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// IndexerDSN selects the event index store: a sqlite file path, or a
	// postgres:// URL. Empty disables indexing.
	IndexerDSN  string `toml:"IndexerDSN"`
	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile"`
	LogLevel    string `toml:"LogLevel"`

	Rewards   RewardsConfig   `toml:"Rewards"`
	Rent      RentConfig      `toml:"Rent"`
	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Genesis   GenesisConfig   `toml:"Genesis"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	params := growspace.DefaultParams()
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./growspace-data",
		IndexerDSN:    "",
		LogLevel:      "info",
		Rewards: RewardsConfig{
			RewardPerPeriod:       params.RewardPerPeriod.Dec(),
			PeriodDurationSeconds: params.PeriodDurationSeconds,
		},
		Rent: RentConfig{
			StorageOverheadBytes: params.Rent.StorageOverheadBytes,
			LamportsPerByteYear:  params.Rent.LamportsPerByteYear,
			ExemptionYears:       params.Rent.ExemptionYears,
			MaxGrowthPerAppend:   params.Rent.MaxGrowthPerAppend,
			MaxRecordSize:        params.Rent.MaxRecordSize,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 50},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaults.ListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(c.Rewards.RewardPerPeriod) == "" {
		c.Rewards.RewardPerPeriod = defaults.Rewards.RewardPerPeriod
	}
	if c.Rewards.PeriodDurationSeconds == 0 {
		c.Rewards.PeriodDurationSeconds = defaults.Rewards.PeriodDurationSeconds
	}
	if c.Rent.ExemptionYears == 0 {
		c.Rent.ExemptionYears = defaults.Rent.ExemptionYears
	}
	if c.Rent.MaxGrowthPerAppend == 0 {
		c.Rent.MaxGrowthPerAppend = defaults.Rent.MaxGrowthPerAppend
	}
	if c.Rent.MaxRecordSize == 0 {
		c.Rent.MaxRecordSize = defaults.Rent.MaxRecordSize
	}
	if c.Genesis.Balances == nil {
		c.Genesis.Balances = []GenesisBalance{}
	}
}

// GrowspaceParams converts the reward and rent sections into engine parameters.
func (c *Config) GrowspaceParams() (growspace.Params, error) {
	reward, err := parseAmount(c.Rewards.RewardPerPeriod)
	if err != nil {
		return growspace.Params{}, fmt.Errorf("rewards: RewardPerPeriod: %w", err)
	}
	params := growspace.Params{
		RewardPerPeriod:       reward,
		PeriodDurationSeconds: c.Rewards.PeriodDurationSeconds,
		Rent: growspace.RentParams{
			StorageOverheadBytes: c.Rent.StorageOverheadBytes,
			LamportsPerByteYear:  c.Rent.LamportsPerByteYear,
			ExemptionYears:       c.Rent.ExemptionYears,
			MaxGrowthPerAppend:   c.Rent.MaxGrowthPerAppend,
			MaxRecordSize:        c.Rent.MaxRecordSize,
		},
	}
	return params, params.Validate()
}

// Secret resolves the token verification secret.
func (a AuthConfig) Secret() string {
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(a.HMACSecret)
}

// Allocation is a parsed genesis balance.
type Allocation struct {
	Identity types.Identity
	Amount   *uint256.Int
}

// Allocations parses the genesis balances.
func (g GenesisConfig) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(g.Balances))
	for i, entry := range g.Balances {
		id, err := types.ParseIdentity(entry.Identity)
		if err != nil {
			return nil, fmt.Errorf("genesis: balance %d: %w", i, err)
		}
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis: balance %d: %w", i, err)
		}
		out = append(out, Allocation{Identity: id, Amount: amount})
	}
	return out, nil
}

// Treasury returns the admin identity and funding amount. The boolean is false
// when no treasury funding is configured.
func (g GenesisConfig) Treasury() (types.Identity, *uint256.Int, bool, error) {
	if strings.TrimSpace(g.TreasuryFunding) == "" {
		return types.Identity{}, nil, false, nil
	}
	amount, err := parseAmount(g.TreasuryFunding)
	if err != nil {
		return types.Identity{}, nil, false, fmt.Errorf("genesis: TreasuryFunding: %w", err)
	}
	if amount.IsZero() {
		return types.Identity{}, nil, false, nil
	}
	admin, err := types.ParseIdentity(g.Admin)
	if err != nil {
		return types.Identity{}, nil, false, fmt.Errorf("genesis: Admin: %w", err)
	}
	return admin, amount, true, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
