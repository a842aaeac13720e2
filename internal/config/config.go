// Package config provides the immutable run configuration for floodsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Displacement policies. Threshold is the trust-mediated model; probabilistic
// keeps the earlier draw-against-perception variant selectable.
const (
	DisplacementThreshold     = "threshold"
	DisplacementProbabilistic = "probabilistic"
)

// Config contains every parameter of a simulation run.
// It is built once before the run and passed by value afterwards.
type Config struct {
	// Seed initializes the single random stream of the run.
	Seed int64 `json:"seed" yaml:"seed"`

	// Years is the simulated horizon. Years 0..Years-1 are run.
	Years int `json:"years" yaml:"years"`

	// Workers bounds per-phase parallelism. 0 means GOMAXPROCS, 1 is sequential.
	Workers int `json:"workers" yaml:"workers"`

	Domain    DomainConfig    `json:"domain" yaml:"domain"`
	Household HouseholdConfig `json:"household" yaml:"household"`
	Warning   WarningConfig   `json:"warning" yaml:"warning"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// DomainConfig describes the toroidal space households live on.
type DomainConfig struct {
	// Size is the side length of the square wrap-around domain.
	Size float64 `json:"size" yaml:"size"`

	// NeighborRadius is the contagion radius, in domain units.
	NeighborRadius float64 `json:"neighbor_radius" yaml:"neighbor_radius"`
}

// HouseholdConfig holds the damage, recovery and displacement constants.
type HouseholdConfig struct {
	PovertyLine float64 `json:"poverty_line" yaml:"poverty_line"`

	// DamageThreshold is the intensity (mm) below which prepared households take no damage.
	DamageThreshold float64 `json:"damage_threshold" yaml:"damage_threshold"`

	// DamageMax is the intensity (mm) that corresponds to 100% damage.
	DamageMax float64 `json:"damage_max" yaml:"damage_max"`

	// DisplaceThreshold is the damage at or above which a household is displaced.
	DisplaceThreshold float64 `json:"displace_threshold" yaml:"displace_threshold"`

	// Displacement selects the displacement policy: "threshold" or "probabilistic".
	Displacement string `json:"displacement" yaml:"displacement"`

	// MutualAid is the flat damage reduction a household receives when a
	// neighbor recovered in the same year. 0 disables it.
	MutualAid float64 `json:"mutual_aid" yaml:"mutual_aid"`
}

// WarningConfig holds the early-warning policy rates.
type WarningConfig struct {
	FalseAlarmRate    float64 `json:"false_alarm_rate" yaml:"false_alarm_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate" yaml:"false_negative_rate"`
}

// LoggingConfig configures log verbosity: "info" (default) or "debug".
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference model parameters.
func Default() Config {
	return Config{
		Seed:    42,
		Years:   100,
		Workers: 0,
		Domain: DomainConfig{
			Size:           180,
			NeighborRadius: 0.002,
		},
		Household: HouseholdConfig{
			PovertyLine:       1,
			DamageThreshold:   10,
			DamageMax:         1000,
			DisplaceThreshold: 0.65,
			Displacement:      DisplacementThreshold,
			MutualAid:         0,
		},
		Warning: WarningConfig{
			FalseAlarmRate:    0.3,
			FalseNegativeRate: 0.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path (if non-empty) and applies
// environment variable overrides. Order: defaults -> file -> environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Fields missing from the file keep their default values.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML, used to archive it with a run.
func (c Config) Marshal() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// Validate checks the configuration before any year runs.
// All failures are reported as *ConfigurationError.
func (c Config) Validate() error {
	if c.Years <= 0 {
		return &ConfigurationError{Field: "years", Reason: fmt.Sprintf("must be positive, got %d", c.Years)}
	}
	if c.Workers < 0 {
		return &ConfigurationError{Field: "workers", Reason: fmt.Sprintf("must be non-negative, got %d", c.Workers)}
	}
	if c.Domain.Size <= 0 {
		return &ConfigurationError{Field: "domain.size", Reason: fmt.Sprintf("must be positive, got %g", c.Domain.Size)}
	}
	if c.Domain.NeighborRadius < 0 {
		return &ConfigurationError{Field: "domain.neighbor_radius", Reason: fmt.Sprintf("must be non-negative, got %g", c.Domain.NeighborRadius)}
	}
	if c.Household.DamageMax <= 0 {
		return &ConfigurationError{Field: "household.damage_max", Reason: fmt.Sprintf("must be positive, got %g", c.Household.DamageMax)}
	}
	if c.Household.DamageThreshold < 0 {
		return &ConfigurationError{Field: "household.damage_threshold", Reason: fmt.Sprintf("must be non-negative, got %g", c.Household.DamageThreshold)}
	}
	if err := checkUnit("household.displace_threshold", c.Household.DisplaceThreshold); err != nil {
		return err
	}
	if err := checkUnit("household.mutual_aid", c.Household.MutualAid); err != nil {
		return err
	}
	switch c.Household.Displacement {
	case DisplacementThreshold, DisplacementProbabilistic:
	default:
		return &ConfigurationError{
			Field:  "household.displacement",
			Reason: fmt.Sprintf("unknown policy %q (valid: %s, %s)", c.Household.Displacement, DisplacementThreshold, DisplacementProbabilistic),
		}
	}
	if err := checkUnit("warning.false_alarm_rate", c.Warning.FalseAlarmRate); err != nil {
		return err
	}
	if err := checkUnit("warning.false_negative_rate", c.Warning.FalseNegativeRate); err != nil {
		return err
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true}
	if !validLevels[c.Logging.Level] {
		return &ConfigurationError{Field: "logging.level", Reason: fmt.Sprintf("invalid level %q (valid: info, debug)", c.Logging.Level)}
	}
	return nil
}

func checkUnit(field string, v float64) error {
	// NaN fails both comparisons, so test the accepted range directly.
	if !(v >= 0 && v <= 1) {
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("must be between 0 and 1, got %g", v)}
	}
	return nil
}

// applyEnvOverrides applies FLOODSIM_* environment variable overrides.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("FLOODSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = n
		}
	}
	if v := os.Getenv("FLOODSIM_YEARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Years = n
		}
	}
	if v := os.Getenv("FLOODSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("FLOODSIM_FALSE_ALARM_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Warning.FalseAlarmRate = f
		}
	}
	if v := os.Getenv("FLOODSIM_FALSE_NEGATIVE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Warning.FalseNegativeRate = f
		}
	}
	if v := os.Getenv("FLOODSIM_DISPLACEMENT"); v != "" {
		c.Household.Displacement = v
	}
	if v := os.Getenv("FLOODSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
