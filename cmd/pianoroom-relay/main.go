// ABOUTME: Entry point for the pianoroom relay
// ABOUTME: Parses CLI flags and serves one shared room until interrupted
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/internal/logging"
	"github.com/Resonate-Protocol/pianoroom/internal/relay"
	"github.com/Resonate-Protocol/pianoroom/internal/version"
)

var (
	port     = flag.Int("port", relay.DefaultPort, "WebSocket relay port")
	name     = flag.String("name", "", "Room name (default: hostname-pianoroom)")
	maxNotes = flag.Int("max-notes", 200, "Maximum notes relayed per batch")
	logFile  = flag.String("log-file", "pianoroom-relay.log", "Log file path")
	debug    = flag.Bool("debug", false, "Enable debug logging")
	noMDNS   = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	logger, closeLog, err := logging.New(logging.Config{
		Path:   *logFile,
		Stdout: true,
		Debug:  *debug,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	roomName := *name
	if roomName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		roomName = fmt.Sprintf("%s-pianoroom", hostname)
	}

	logger.Info("starting relay",
		zap.String("version", version.String()),
		zap.String("room", roomName),
		zap.Int("port", *port),
		zap.String("log_file", *logFile))

	srv := relay.NewServer(relay.ServerConfig{
		Port:             *port,
		Name:             roomName,
		EnableMDNS:       !*noMDNS,
		MaxNotesPerBatch: *maxNotes,
		Logger:           logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutting down", zap.Stringer("signal", sig))
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		logger.Error("relay error", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
	logger.Info("relay stopped")
}
