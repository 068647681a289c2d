package matching

import (
	"errors"
	"fmt"
	"time"
)

// Signal names one independent piece of matching evidence.
type Signal string

const (
	SignalIdentity         Signal = "identity"
	SignalCoupleStatus     Signal = "couple_status"
	SignalCaseID           Signal = "case_id"
	SignalTiming           Signal = "timing"
	SignalInsuranceAmounts Signal = "insurance_amounts"
)

// Weight is one row of the weight table.
type Weight struct {
	Signal Signal  `json:"signal"`
	Weight float64 `json:"weight"`
}

// Config is the declarative matcher configuration. Retuning weights or the threshold
// only ever means changing this value.
type Config struct {
	Threshold           float64       `json:"threshold"`
	Weights             []Weight      `json:"weights"`
	FullTimingWindow    time.Duration `json:"full_timing_window"`
	PartialTimingWindow time.Duration `json:"partial_timing_window"`
	AmountTolerance     float64       `json:"amount_tolerance"`
}

// DefaultConfig returns the production weight table.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.6,
		Weights: []Weight{
			{Signal: SignalIdentity, Weight: 0.5},
			{Signal: SignalCoupleStatus, Weight: 0.2},
			{Signal: SignalCaseID, Weight: 0.1},
			{Signal: SignalTiming, Weight: 0.1},
			{Signal: SignalInsuranceAmounts, Weight: 0.1},
		},
		FullTimingWindow:    7 * 24 * time.Hour,
		PartialTimingWindow: 30 * 24 * time.Hour,
		AmountTolerance:     0.05,
	}
}

// Validate checks the table is usable. The identity signal must come first because
// every other signal is meaningless without it.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v must be within [0,1]", c.Threshold)
	}
	if len(c.Weights) == 0 || c.Weights[0].Signal != SignalIdentity {
		return errors.New("weight table must start with the identity signal")
	}
	seen := make(map[Signal]bool, len(c.Weights))
	for _, w := range c.Weights {
		if _, ok := evaluators[w.Signal]; !ok {
			return fmt.Errorf("unknown signal %q", w.Signal)
		}
		if seen[w.Signal] {
			return fmt.Errorf("signal %q listed twice", w.Signal)
		}
		seen[w.Signal] = true
		if w.Weight < 0 || w.Weight > 1 {
			return fmt.Errorf("weight for %q must be within [0,1]", w.Signal)
		}
	}
	if c.FullTimingWindow <= 0 || c.PartialTimingWindow < c.FullTimingWindow {
		return errors.New("timing windows must be positive and full <= partial")
	}
	if c.AmountTolerance < 0 {
		return errors.New("amount tolerance must not be negative")
	}
	return nil
}
