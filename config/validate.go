package config

import "fmt"

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := c.GrowspaceParams(); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.Secret() == "" {
		return fmt.Errorf("auth: enabled without HMACSecret or HMACSecretEnv")
	}
	if c.Auth.ClockSkewSeconds < 0 {
		return fmt.Errorf("auth: ClockSkewSeconds must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit: values must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	if _, err := c.Genesis.Allocations(); err != nil {
		return err
	}
	if _, _, _, err := c.Genesis.Treasury(); err != nil {
		return err
	}
	return nil
}
