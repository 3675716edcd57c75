// main.go
// Purpose: Application entry point. Loads configuration, builds the cars,
// dispatcher and driver, then starts the assigner, network, console and FSM
// threads. Handles shutdown on interrupt (Ctrl+C).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"elevcore/common"
	"elevcore/elevclock"
	"elevcore/logger"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	envFile := flag.String("env", ".env", "optional .env file with ELEVATOR_* overrides")
	mode := flag.String("mode", "", "driver mode override (fast|realtime)")
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		loaded, err := common.LoadConfig(*configPath)
		if err != nil {
			logger.GetLogger().Fatal().Err(err).Msg("loading config")
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("applying environment")
	}
	if *mode != "" {
		cfg.Driver.Mode = *mode
	}

	log := logger.GetLoggerConfigured(logger.ParseLevel(cfg.Log.Level))

	dr, err := elevclock.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("building elevator system")
	}
	log.Info().
		Ints("cars", cfg.CarIDs()).
		Int("minFloor", cfg.Building.MinFloor).
		Int("maxFloor", cfg.Building.MaxFloor).
		Str("mode", cfg.Driver.Mode).
		Msg("elevator system ready")

	// ctrl + c handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	// network/console -> assigner
	panelCmdCh := make(chan panelCmd)

	go assignerThread(ctx, dr.Dispatcher(), panelCmdCh)
	if cfg.Network.ListenAddr != "" {
		go networkThread(ctx, cfg, dr, panelCmdCh)
	}
	if cfg.Log.DebugKeys {
		go consoleThread(ctx, cancel, cfg, panelCmdCh)
	}

	fsmThread(ctx, dr)
	cancel()
	log.Info().Uint64("tick", dr.Now()).Msg("Shutting down")
}
