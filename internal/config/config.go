// Package config loads the core's runtime configuration: the master key
// material and the anomaly detector's tunable thresholds. Values are read
// as generic YAML then decoded into typed structs via mapstructure, the
// same two-stage approach hashicorp-nomad uses for its own HCL/JSON config
// layering.
package config

import (
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opd-ai/privacycore/internal/anomaly"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/safeconv"
	"gopkg.in/yaml.v3"
)

// AnomalyConfig mirrors anomaly.Config with YAML-friendly field names and
// plain integers for durations.
type AnomalyConfig struct {
	MaxOpsPerWindow             int     `yaml:"max_ops_per_window" mapstructure:"max_ops_per_window"`
	WindowSeconds               int     `yaml:"window_seconds" mapstructure:"window_seconds"`
	FailureRatioThreshold       float64 `yaml:"failure_ratio_threshold" mapstructure:"failure_ratio_threshold"`
	RevokedKeyAttemptsThreshold int     `yaml:"revoked_key_attempts_threshold" mapstructure:"revoked_key_attempts_threshold"`
	WorkingHoursStart           int     `yaml:"working_hours_start" mapstructure:"working_hours_start"`
	WorkingHoursEnd             int     `yaml:"working_hours_end" mapstructure:"working_hours_end"`
}

// ToAnomalyConfig converts to the anomaly package's runtime Config.
func (a AnomalyConfig) ToAnomalyConfig() anomaly.Config {
	return anomaly.Config{
		MaxOpsPerWindow:             a.MaxOpsPerWindow,
		Window:                      time.Duration(a.WindowSeconds) * time.Second,
		FailureRatioThreshold:       a.FailureRatioThreshold,
		RevokedKeyAttemptsThreshold: a.RevokedKeyAttemptsThreshold,
		WorkingHoursStart:           a.WorkingHoursStart,
		WorkingHoursEnd:             a.WorkingHoursEnd,
	}
}

// Config is the core's full runtime configuration.
type Config struct {
	MasterKeyHex        string        `yaml:"master_key" mapstructure:"master_key"`
	MasterKeyPassphrase string        `yaml:"master_key_passphrase" mapstructure:"master_key_passphrase"`
	MetricsEnabled      bool          `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	Anomaly             AnomalyConfig `yaml:"anomaly" mapstructure:"anomaly"`
}

// Default returns the documented out-of-box configuration.
func Default() Config {
	defaults := anomaly.DefaultConfig()

	windowSeconds, err := safeconv.DurationSecondsToInt(defaults.Window.Seconds())
	if err != nil {
		obslog.New("config", "Default").WithError(err, "bad_duration", "DurationSecondsToInt").
			Warn("anomaly window duration failed safe conversion, falling back to zero")
		windowSeconds = 0
	}

	return Config{
		Anomaly: AnomalyConfig{
			MaxOpsPerWindow:             defaults.MaxOpsPerWindow,
			WindowSeconds:               windowSeconds,
			FailureRatioThreshold:       defaults.FailureRatioThreshold,
			RevokedKeyAttemptsThreshold: defaults.RevokedKeyAttemptsThreshold,
			WorkingHoursStart:           defaults.WorkingHoursStart,
			WorkingHoursEnd:             defaults.WorkingHoursEnd,
		},
	}
}

// LoadFile reads a YAML configuration file at path, overlaying it onto
// Default(). A missing or zero-valued anomaly section falls back to its
// documented default.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, domain.ErrConfigMissing
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a Config, overlaying Default().
func Parse(raw []byte) (Config, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return Config{}, err
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(generic); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
