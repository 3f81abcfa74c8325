package config

// RewardsConfig controls the reward pool and the period clock.
type RewardsConfig struct {
	// RewardPerPeriod is a base-10 integer split pro rata across a period's
	// credit.
	RewardPerPeriod       string `toml:"RewardPerPeriod"`
	PeriodDurationSeconds uint64 `toml:"PeriodDurationSeconds"`
}

// RentConfig prices ledger storage.
type RentConfig struct {
	StorageOverheadBytes uint64 `toml:"StorageOverheadBytes"`
	LamportsPerByteYear  uint64 `toml:"LamportsPerByteYear"`
	ExemptionYears       uint64 `toml:"ExemptionYears"`
	MaxGrowthPerAppend   uint64 `toml:"MaxGrowthPerAppend"`
	MaxRecordSize        uint64 `toml:"MaxRecordSize"`
}

// AuthConfig verifies bearer tokens on claim and admin routes.
type AuthConfig struct {
	Enabled bool `toml:"Enabled"`
	// HMACSecretEnv names an environment variable holding the secret. It takes
	// precedence over HMACSecret.
	HMACSecret       string `toml:"HMACSecret"`
	HMACSecretEnv    string `toml:"HMACSecretEnv"`
	Issuer           string `toml:"Issuer"`
	Audience         string `toml:"Audience"`
	ClockSkewSeconds int64  `toml:"ClockSkewSeconds"`
}

// RateLimitConfig throttles vote submission per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// GenesisBalance funds an identity when the data directory is first created.
type GenesisBalance struct {
	Identity string `toml:"Identity"`
	Amount   string `toml:"Amount"`
}

// GenesisConfig seeds balances and optionally funds the treasury.
type GenesisConfig struct {
	Admin           string           `toml:"Admin"`
	TreasuryFunding string           `toml:"TreasuryFunding"`
	Balances        []GenesisBalance `toml:"Balances"`
}
