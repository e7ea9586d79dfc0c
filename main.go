// main.go - Main entry point for the NEXUS-X Omega Studio audio engine

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func boilerPlate() {
	fmt.Println("NEXUS-X Omega Studio - real-time multi-track audio engine")
	fmt.Println("7 tracks, 3-band master EQ, look-ahead limiter, soft clipper")
}

func main() {
	var (
		configPath string
		listen     string
		noKeys     bool
		autoPlay   bool
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&listen, "listen", "", "control server address (overrides config)")
	flag.BoolVar(&noKeys, "no-keys", false, "disable keyboard control")
	flag.BoolVar(&autoPlay, "play", false, "start playback immediately")
	flag.Parse()

	boilerPlate()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := setupLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	engine := NewAudioEngine(cfg, NewToneBank(cfg.SampleRate))

	output, err := NewAudioOutput(AUDIO_BACKEND_OTO, cfg.SampleRate, engine)
	if err != nil {
		// Device-unavailable is fatal to the engine instance but must
		// not crash: report once and exit cleanly.
		log.Error("audio output setup failed", "err", err)
		os.Exit(1)
	}
	output.Start()
	log.Info("audio engine running",
		"sample_rate", cfg.SampleRate,
		"tracks", NUM_TRACKS,
		"bpm", cfg.BPM)

	if listen == "" {
		listen = cfg.Listen
	}
	if listen != "" {
		server := NewControlServer(engine, log)
		go func() {
			if err := server.Serve(listen); err != nil {
				log.Error("control server stopped", "err", err)
			}
		}()
	}

	if autoPlay {
		if err := engine.Submit(AudioCommand{Kind: CMD_PLAY}); err != nil {
			log.Warn("autoplay command dropped", "err", err)
		}
	}

	termCtl := NewTerminalControl(engine, cfg, log)
	if !noKeys {
		termCtl.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case <-termCtl.Quit():
		log.Info("shutting down", "reason", "quit key")
	}

	termCtl.Stop()
	output.Stop()
	output.Close()
}
