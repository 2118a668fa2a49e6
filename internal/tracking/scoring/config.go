package scoring

import (
	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Config holds scoring bands and calibration constants.
type Config struct {
	NetFlowMax      int `yaml:"net_flow_max"`
	VelocityMax     int `yaml:"velocity_max"`
	CorrelationMax  int `yaml:"correlation_max"`
	ExchangeFlowMax int `yaml:"exchange_flow_max"`

	// ExchangeBaseMax caps the volume part of the exchange-flow score;
	// ExchangeBonus is added when exchange direction agrees with net flow.
	ExchangeBaseMax int `yaml:"exchange_base_max"`
	ExchangeBonus   int `yaml:"exchange_bonus"`

	// Saturation points: the USD magnitude (or ratio) that maxes a band.
	NetFlowSaturationUSD  float64 `yaml:"net_flow_saturation_usd"`
	ExchangeSaturationUSD float64 `yaml:"exchange_saturation_usd"`
	VelocitySaturation    float64 `yaml:"velocity_saturation"`

	// VelocityFloorUSD is the daily baseline used when the 30-day average is
	// missing or smaller.
	VelocityFloorUSD float64 `yaml:"velocity_floor_usd"`

	// NoiseFloorUSD is the net-flow magnitude a peer must exceed to be active.
	NoiseFloorUSD  float64 `yaml:"noise_floor_usd"`
	MinActivePeers int     `yaml:"min_active_peers"`

	ExchangeAddresses []string `yaml:"exchange_addresses"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		NetFlowMax:            domain.MaxNetFlow,
		VelocityMax:           domain.MaxVelocity,
		CorrelationMax:        domain.MaxCorrelation,
		ExchangeFlowMax:       domain.MaxExchangeFlow,
		ExchangeBaseMax:       12,
		ExchangeBonus:         3,
		NetFlowSaturationUSD:  10_000_000,
		ExchangeSaturationUSD: 10_000_000,
		VelocitySaturation:    100,
		VelocityFloorUSD:      10_000,
		NoiseFloorUSD:         10_000,
		MinActivePeers:        2,
	}
}

// ApplyDefaults fills zero values from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.NetFlowMax == 0 && c.VelocityMax == 0 && c.CorrelationMax == 0 && c.ExchangeFlowMax == 0 {
		c.NetFlowMax, c.VelocityMax = d.NetFlowMax, d.VelocityMax
		c.CorrelationMax, c.ExchangeFlowMax = d.CorrelationMax, d.ExchangeFlowMax
	}
	if c.ExchangeBaseMax == 0 && c.ExchangeBonus == 0 {
		c.ExchangeBaseMax, c.ExchangeBonus = d.ExchangeBaseMax, d.ExchangeBonus
	}
	if c.NetFlowSaturationUSD == 0 {
		c.NetFlowSaturationUSD = d.NetFlowSaturationUSD
	}
	if c.ExchangeSaturationUSD == 0 {
		c.ExchangeSaturationUSD = d.ExchangeSaturationUSD
	}
	if c.VelocitySaturation == 0 {
		c.VelocitySaturation = d.VelocitySaturation
	}
	if c.VelocityFloorUSD == 0 {
		c.VelocityFloorUSD = d.VelocityFloorUSD
	}
	if c.NoiseFloorUSD == 0 {
		c.NoiseFloorUSD = d.NoiseFloorUSD
	}
	if c.MinActivePeers == 0 {
		c.MinActivePeers = d.MinActivePeers
	}
}

// Validate checks the band invariants. A failure is a configuration error
// and must stop the process at startup.
func (c Config) Validate() error {
	const op = "scoring config"
	bands := []int{c.NetFlowMax, c.VelocityMax, c.CorrelationMax, c.ExchangeFlowMax}
	sum := 0
	for _, b := range bands {
		if b <= 0 {
			return apperr.New(apperr.KindConfig, op, "every score band must be positive, got %v", bands)
		}
		sum += b
	}
	if sum != domain.MaxScore {
		return apperr.New(apperr.KindConfig, op, "score bands must sum to %d, got %d", domain.MaxScore, sum)
	}
	if c.ExchangeBaseMax < 0 || c.ExchangeBonus < 0 || c.ExchangeBaseMax+c.ExchangeBonus > c.ExchangeFlowMax {
		return apperr.New(apperr.KindConfig, op,
			"exchange base %d plus bonus %d exceeds band %d", c.ExchangeBaseMax, c.ExchangeBonus, c.ExchangeFlowMax)
	}
	if c.NetFlowSaturationUSD <= 1 || c.ExchangeSaturationUSD <= 1 {
		return apperr.New(apperr.KindConfig, op, "saturation points must be greater than 1 USD")
	}
	if c.VelocitySaturation <= 1 {
		return apperr.New(apperr.KindConfig, op, "velocity saturation ratio must be greater than 1")
	}
	if c.VelocityFloorUSD <= 0 {
		return apperr.New(apperr.KindConfig, op, "velocity floor must be positive")
	}
	if c.NoiseFloorUSD < 0 || c.MinActivePeers < 1 {
		return apperr.New(apperr.KindConfig, op, "invalid correlation quorum settings")
	}
	return nil
}
