package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() returned %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "elevcore.yaml", `
building:
  minFloor: -2
  maxFloor: 20
  doorOpenTicks: 3
cars:
  - id: 7
    startFloor: 5
    capacity: 4
  - id: 3
    startFloor: -2
driver:
  mode: fast
  tickInterval: 250ms
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() returned %v", err)
	}
	if cfg.Building.MinFloor != -2 || cfg.Building.MaxFloor != 20 || cfg.Building.DoorOpenTicks != 3 {
		t.Errorf("building = %+v", cfg.Building)
	}
	if len(cfg.Cars) != 2 || cfg.Cars[0].ID != 7 || cfg.Cars[0].Capacity != 4 {
		t.Errorf("cars = %+v", cfg.Cars)
	}
	if cfg.Driver.Mode != ModeFast || cfg.Driver.TickInterval != 250*time.Millisecond {
		t.Errorf("driver = %+v", cfg.Driver)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Dispatch.WrongWayPenalty != 1000 || cfg.Network.ListenAddr != ":4242" {
		t.Errorf("defaults lost: %+v %+v", cfg.Dispatch, cfg.Network)
	}
	if ids := cfg.CarIDs(); len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Errorf("CarIDs() = %v", ids)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestApplyEnvMap(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnvMap(map[string]string{
		"ELEVATOR_MAX_FLOOR":     "15",
		"ELEVATOR_CARS":          "3",
		"ELEVATOR_MODE":          " FAST ",
		"ELEVATOR_TICK_INTERVAL": "2s",
		"ELEVATOR_PARALLEL":      "true",
		"ELEVATOR_LOG_LEVEL":     "warn",

		"ELEVATOR_WRONG_WAY_PENALTY": "500",
		"ELEVATOR_STARVATION_TICKS":  "20",
		"ELEVATOR_RETENTION_TICKS":   "0",
		"ELEVATOR_MAX_TICKS":         "900",
	})
	if err != nil {
		t.Fatalf("ApplyEnvMap() returned %v", err)
	}
	if cfg.Building.MaxFloor != 15 || len(cfg.Cars) != 3 || cfg.Cars[2].ID != 3 {
		t.Errorf("building %+v cars %+v", cfg.Building, cfg.Cars)
	}
	if cfg.Driver.Mode != ModeFast || cfg.Driver.TickInterval != 2*time.Second || !cfg.Driver.Parallel {
		t.Errorf("driver = %+v", cfg.Driver)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if d := cfg.Dispatch; d.WrongWayPenalty != 500 || d.StarvationWarnTicks != 20 || d.ServedRetentionTicks != 0 {
		t.Errorf("dispatch = %+v", d)
	}
	if cfg.Driver.MaxTicks != 900 {
		t.Errorf("max ticks = %d", cfg.Driver.MaxTicks)
	}

	for _, bad := range []map[string]string{
		{"ELEVATOR_DOOR_TICKS": "soon"},
		{"ELEVATOR_CARS": "-1"},
		{"ELEVATOR_CARS": "0"},
		{"ELEVATOR_MAX_TICKS": "-5"},
	} {
		before := len(cfg.Cars)
		if err := cfg.ApplyEnvMap(bad); err == nil {
			t.Errorf("ApplyEnvMap(%v) should fail", bad)
		}
		if len(cfg.Cars) != before {
			t.Errorf("ApplyEnvMap(%v) changed the car list", bad)
		}
	}
}

func TestApplyEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "ELEVATOR_MIN_FLOOR=1\nELEVATOR_LISTEN_ADDR=127.0.0.1:5000\n")
	cfg := DefaultConfig()
	cfg.Cars = []CarConfig{{ID: 1, StartFloor: 1}}
	if err := cfg.ApplyEnv(path); err != nil {
		t.Fatalf("ApplyEnv() returned %v", err)
	}
	if cfg.Building.MinFloor != 1 || cfg.Network.ListenAddr != "127.0.0.1:5000" {
		t.Errorf("env file not applied: %+v %+v", cfg.Building, cfg.Network)
	}

	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		check  func(error) bool
	}{
		{"no cars", func(c *Config) { c.Cars = nil }, func(err error) bool {
			var noCars *NoCarsConfiguredError
			return errors.As(err, &noCars)
		}},
		{"start floor outside building", func(c *Config) { c.Cars[0].StartFloor = 11 }, func(err error) bool {
			var floorErr *InvalidFloorError
			return errors.As(err, &floorErr) && floorErr.Floor == 11
		}},
		{"duplicate ids", func(c *Config) { c.Cars[1].ID = c.Cars[0].ID }, func(err error) bool { return err != nil }},
		{"inverted building", func(c *Config) { c.Building.MinFloor = 12 }, func(err error) bool { return err != nil }},
		{"zero door ticks", func(c *Config) { c.Building.DoorOpenTicks = 0 }, func(err error) bool { return err != nil }},
		{"unknown mode", func(c *Config) { c.Driver.Mode = "warp" }, func(err error) bool { return err != nil }},
		{"realtime without interval", func(c *Config) { c.Driver.TickInterval = 0 }, func(err error) bool { return err != nil }},
		{"fast without interval", func(c *Config) { c.Driver.Mode = ModeFast; c.Driver.TickInterval = 0 }, func(err error) bool { return err == nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !tt.check(err) {
				t.Errorf("Validate() returned %v", err)
			}
		})
	}
}
