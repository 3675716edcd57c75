package elevclock

import (
	"fmt"

	"elevcore/common"
	"elevcore/elevassigner"
	"elevcore/elevfsm"
)

// NewFromConfig validates cfg and builds the cars, the dispatcher and the
// driver stepping them.
func NewFromConfig(cfg common.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cars, err := elevfsm.NewCarsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	d, err := elevassigner.New(cars, elevassigner.OptionsFromConfig(cfg.Dispatch))
	if err != nil {
		return nil, err
	}
	return NewDriver(d, OptionsFromConfig(cfg.Driver)), nil
}
