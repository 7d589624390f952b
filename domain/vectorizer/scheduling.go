package vectorizer

import (
	"encoding/json"
	"fmt"
	"time"
)

// Scheduling stage implementations.
const (
	SchedulingImplNone     = "none"
	SchedulingImplDefault  = "default"
	SchedulingImplInterval = "interval"
)

// DefaultScheduleInterval is how often the periodic driver runs the worker
// entrypoint when the interval document does not set one.
const DefaultScheduleInterval = 5 * time.Minute

// Scheduling configures the periodic driver for a vectorizer. "none" means
// the worker entrypoint is only ever invoked manually; because index upkeep
// needs a periodic driver, "none" scheduling forces "none" indexing.
type Scheduling interface {
	ConfigType() string
	Implementation() string
	validate() error
}

// SchedulingNone disables the periodic driver.
type SchedulingNone struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewSchedulingNone creates the manual-only scheduling config.
func NewSchedulingNone() SchedulingNone {
	return SchedulingNone{Type: StageScheduling, Impl: SchedulingImplNone}
}

// ConfigType returns the stage tag.
func (s SchedulingNone) ConfigType() string { return s.Type }

// Implementation returns the implementation name.
func (s SchedulingNone) Implementation() string { return s.Impl }

func (s SchedulingNone) validate() error {
	return checkStageTag(StageScheduling, s.Type)
}

// SchedulingDefault is the sentinel resolved against the client's configured
// default at creation time; never persisted.
type SchedulingDefault struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewSchedulingDefault creates the sentinel scheduling config.
func NewSchedulingDefault() SchedulingDefault {
	return SchedulingDefault{Type: StageScheduling, Impl: SchedulingImplDefault}
}

// ConfigType returns the stage tag.
func (s SchedulingDefault) ConfigType() string { return s.Type }

// Implementation returns the implementation name.
func (s SchedulingDefault) Implementation() string { return s.Impl }

func (s SchedulingDefault) validate() error {
	return checkStageTag(StageScheduling, s.Type)
}

// SchedulingInterval drives the worker entrypoint on a fixed interval.
// The interval is persisted in seconds so the serialized form is stable
// across parse/serialize cycles.
type SchedulingInterval struct {
	Type            string  `json:"config_type"`
	Impl            string  `json:"implementation"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// NewSchedulingInterval creates an interval scheduling config.
func NewSchedulingInterval(every time.Duration) SchedulingInterval {
	return SchedulingInterval{
		Type:            StageScheduling,
		Impl:            SchedulingImplInterval,
		IntervalSeconds: every.Seconds(),
	}
}

// ConfigType returns the stage tag.
func (s SchedulingInterval) ConfigType() string { return s.Type }

// Implementation returns the implementation name.
func (s SchedulingInterval) Implementation() string { return s.Impl }

// Interval returns the configured tick interval.
func (s SchedulingInterval) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds * float64(time.Second))
}

func (s SchedulingInterval) validate() error {
	if err := checkStageTag(StageScheduling, s.Type); err != nil {
		return err
	}
	if s.IntervalSeconds < 1 {
		return fmt.Errorf("%w: scheduling: interval_seconds must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func parseScheduling(raw json.RawMessage) (Scheduling, error) {
	impl, err := peekImplementation(StageScheduling, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case SchedulingImplNone:
		s := NewSchedulingNone()
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: scheduling: %v", ErrInvalidConfig, err)
		}
		return s, nil
	case SchedulingImplDefault:
		s := NewSchedulingDefault()
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: scheduling: %v", ErrInvalidConfig, err)
		}
		return s, nil
	case SchedulingImplInterval:
		s := NewSchedulingInterval(DefaultScheduleInterval)
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: scheduling: %v", ErrInvalidConfig, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: scheduling: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
