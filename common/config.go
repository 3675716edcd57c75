// common/config.go
package common

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeFast     = "fast"
	ModeRealTime = "realtime"
)

type Config struct {
	Building BuildingConfig `yaml:"building"`
	Cars     []CarConfig    `yaml:"cars"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Driver   DriverConfig   `yaml:"driver"`
	Network  NetworkConfig  `yaml:"network"`
	Log      LogConfig      `yaml:"log"`
}

type BuildingConfig struct {
	MinFloor int `yaml:"minFloor"`
	MaxFloor int `yaml:"maxFloor"`
	// Ticks the door stays open after serving a floor.
	DoorOpenTicks int `yaml:"doorOpenTicks"`
	// Ticks a car parks at its reversal point before heading back.
	ReversalDwellTicks int `yaml:"reversalDwellTicks"`
}

type CarConfig struct {
	ID         int `yaml:"id"`
	StartFloor int `yaml:"startFloor"`
	// Maximum outstanding car calls, 0 means unbounded.
	Capacity int `yaml:"capacity"`
}

type DispatchConfig struct {
	IdlePenalty          int    `yaml:"idlePenalty"`
	WrongWayPenalty      int    `yaml:"wrongWayPenalty"`
	StarvationWarnTicks  uint64 `yaml:"starvationWarnTicks"`
	ServedRetentionTicks uint64 `yaml:"servedRetentionTicks"`
}

type DriverConfig struct {
	Mode         string        `yaml:"mode"`
	TickInterval time.Duration `yaml:"tickInterval"`
	MaxTicks     uint64        `yaml:"maxTicks"`
	Parallel     bool          `yaml:"parallel"`
}

type NetworkConfig struct {
	// Empty disables the panel server.
	ListenAddr string `yaml:"listenAddr"`
	ServerID   int    `yaml:"serverID"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	DebugKeys bool   `yaml:"debugKeys"`
}

// DefaultConfig describes a ten-storey building (floors 0..10) with two cars.
func DefaultConfig() Config {
	return Config{
		Building: BuildingConfig{
			MinFloor:           0,
			MaxFloor:           10,
			DoorOpenTicks:      1,
			ReversalDwellTicks: 0,
		},
		Cars: []CarConfig{
			{ID: 1, StartFloor: 0},
			{ID: 2, StartFloor: 0},
		},
		Dispatch: DispatchConfig{
			IdlePenalty:          2,
			WrongWayPenalty:      1000,
			StarvationWarnTicks:  50,
			ServedRetentionTicks: 100,
		},
		Driver: DriverConfig{
			Mode:         ModeRealTime,
			TickInterval: 500 * time.Millisecond,
		},
		Network: NetworkConfig{
			ListenAddr: ":4242",
			ServerID:   1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	file, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&c); err != nil {
		return c, fmt.Errorf("decode config %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overrides c from an optional .env file and the process environment.
// The process environment wins over the file. Every Config field except the
// per-car list and Log.DebugKeys has an ELEVATOR_* key; ELEVATOR_CARS replaces
// the car list with n default cars.
func (c *Config) ApplyEnv(envFile string) error {
	vars := map[string]string{}
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read env file: %w", err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "ELEVATOR_") {
			vars[k] = v
		}
	}
	return c.ApplyEnvMap(vars)
}

func (c *Config) ApplyEnvMap(vars map[string]string) error {
	atoi := func(key string, dest *int) error {
		v, ok := vars[key]
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dest = n
		return nil
	}

	atou := func(key string, dest *uint64) error {
		v, ok := vars[key]
		if !ok {
			return nil
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dest = n
		return nil
	}

	for key, dest := range map[string]*int{
		"ELEVATOR_MIN_FLOOR":         &c.Building.MinFloor,
		"ELEVATOR_MAX_FLOOR":         &c.Building.MaxFloor,
		"ELEVATOR_DOOR_TICKS":        &c.Building.DoorOpenTicks,
		"ELEVATOR_REVERSAL_TICKS":    &c.Building.ReversalDwellTicks,
		"ELEVATOR_IDLE_PENALTY":      &c.Dispatch.IdlePenalty,
		"ELEVATOR_WRONG_WAY_PENALTY": &c.Dispatch.WrongWayPenalty,
		"ELEVATOR_SERVER_ID":         &c.Network.ServerID,
	} {
		if err := atoi(key, dest); err != nil {
			return err
		}
	}
	for key, dest := range map[string]*uint64{
		"ELEVATOR_STARVATION_TICKS": &c.Dispatch.StarvationWarnTicks,
		"ELEVATOR_RETENTION_TICKS":  &c.Dispatch.ServedRetentionTicks,
		"ELEVATOR_MAX_TICKS":        &c.Driver.MaxTicks,
	} {
		if err := atou(key, dest); err != nil {
			return err
		}
	}

	if v, ok := vars["ELEVATOR_CARS"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ELEVATOR_CARS: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("ELEVATOR_CARS must be positive, got %d", n)
		}
		cars := make([]CarConfig, 0, n)
		for id := 1; id <= n; id++ {
			cars = append(cars, CarConfig{ID: id, StartFloor: c.Building.MinFloor})
		}
		c.Cars = cars
	}
	if v, ok := vars["ELEVATOR_MODE"]; ok {
		c.Driver.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := vars["ELEVATOR_TICK_INTERVAL"]; ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ELEVATOR_TICK_INTERVAL: %w", err)
		}
		c.Driver.TickInterval = d
	}
	if v, ok := vars["ELEVATOR_PARALLEL"]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ELEVATOR_PARALLEL: %w", err)
		}
		c.Driver.Parallel = b
	}
	if v, ok := vars["ELEVATOR_LISTEN_ADDR"]; ok {
		c.Network.ListenAddr = strings.TrimSpace(v)
	}
	if v, ok := vars["ELEVATOR_LOG_LEVEL"]; ok {
		c.Log.Level = strings.TrimSpace(v)
	}
	return nil
}

func (c Config) Validate() error {
	b := c.Building
	if b.MinFloor > b.MaxFloor {
		return fmt.Errorf("minFloor %d above maxFloor %d", b.MinFloor, b.MaxFloor)
	}
	if b.DoorOpenTicks < 1 {
		return fmt.Errorf("doorOpenTicks must be at least 1, got %d", b.DoorOpenTicks)
	}
	if b.ReversalDwellTicks < 0 {
		return fmt.Errorf("reversalDwellTicks must not be negative, got %d", b.ReversalDwellTicks)
	}
	if len(c.Cars) == 0 {
		return &NoCarsConfiguredError{}
	}
	seen := make(map[int]bool, len(c.Cars))
	for _, car := range c.Cars {
		if seen[car.ID] {
			return fmt.Errorf("duplicate car id %d", car.ID)
		}
		seen[car.ID] = true
		if err := CheckFloor(car.StartFloor, b.MinFloor, b.MaxFloor); err != nil {
			return fmt.Errorf("car %d start floor: %w", car.ID, err)
		}
		if car.Capacity < 0 {
			return fmt.Errorf("car %d capacity must not be negative", car.ID)
		}
	}
	switch c.Driver.Mode {
	case ModeFast:
	case ModeRealTime:
		if c.Driver.TickInterval <= 0 {
			return fmt.Errorf("realtime mode needs a positive tickInterval")
		}
	default:
		return fmt.Errorf("unknown driver mode %q", c.Driver.Mode)
	}
	return nil
}

// CarIDs returns the configured car ids in ascending order.
func (c Config) CarIDs() []int {
	ids := make([]int, 0, len(c.Cars))
	for _, car := range c.Cars {
		ids = append(ids, car.ID)
	}
	sort.Ints(ids)
	return ids
}
