// ABOUTME: Entry point for the pianoroom player
// ABOUTME: Parses CLI flags, builds the engine and piano, and runs a front end
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/internal/discovery"
	"github.com/Resonate-Protocol/pianoroom/internal/keys"
	"github.com/Resonate-Protocol/pianoroom/internal/logging"
	"github.com/Resonate-Protocol/pianoroom/internal/relay"
	"github.com/Resonate-Protocol/pianoroom/internal/repl"
	"github.com/Resonate-Protocol/pianoroom/internal/ui"
	"github.com/Resonate-Protocol/pianoroom/internal/version"
	"github.com/Resonate-Protocol/pianoroom/pkg/audio/output"
	"github.com/Resonate-Protocol/pianoroom/pkg/piano"
	"github.com/Resonate-Protocol/pianoroom/pkg/samples"
)

var (
	serverAddr  = flag.String("server", "", "Relay address host:port (empty: play alone, or browse with -room)")
	room        = flag.String("room", "", "Relay room to find via mDNS when -server is empty")
	name        = flag.String("name", "", "Participant name (default: hostname)")
	color       = flag.String("color", "", "Participant color, e.g. #ff8800 (default: assigned by the relay)")
	packURL     = flag.String("pack", "sounds/", "Sound pack location: URL or directory holding <note><ext> files")
	packExt     = flag.String("ext", ".mp3", "Sample file extension")
	backend     = flag.String("backend", "oto", fmt.Sprintf("Audio backend %v", output.Backends()))
	thresholdMs = flag.Int("threshold-ms", 0, "Requests further ahead than this go through the lookahead scheduler")
	volume      = flag.Float64("volume", 0.6, "Master volume 0-1")
	synth       = flag.Bool("synth", false, "Layer a square-wave synth under every note (disables sustain)")
	autoSustain = flag.Bool("auto-sustain", false, "Keep released notes ringing")
	bufferMs    = flag.Int("buffer-ms", 200, "Extra latency added to remote notes to absorb network jitter")
	cacheDir    = flag.String("cache-dir", "", "Directory for downloaded samples (default: temporary)")
	logFile     = flag.String("log-file", "pianoroom.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	useREPL     = flag.Bool("repl", false, "Read commands from a prompt instead of the TUI")
	debug       = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	useTUI := !(*noTUI || *useREPL)

	logger, closeLog, err := logging.New(logging.Config{
		Path:   *logFile,
		Stdout: !useTUI && !*useREPL,
		Debug:  *debug,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(logger, useTUI); err != nil {
		logger.Error("player failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		closeLog()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, useTUI bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = hostname
	}
	logger.Info("starting player",
		zap.String("version", version.String()),
		zap.String("name", playerName),
		zap.String("backend", *backend))

	out, err := output.New(*backend, logger)
	if err != nil {
		return err
	}

	sampleCache, clearCache := *cacheDir, false
	if sampleCache == "" {
		dir, err := os.MkdirTemp("", "pianoroom-samples-")
		if err != nil {
			return fmt.Errorf("failed to create sample cache: %w", err)
		}
		sampleCache, clearCache = dir, true
	}

	var p *piano.Piano
	engine, err := piano.NewEngine(piano.Config{
		Volume:      volume,
		Threshold:   time.Duration(*thresholdMs) * time.Millisecond,
		EnableSynth: *synth,
		// The TUI asks for ctrl+p before making noise
		AutoResume: !useTUI,
		Output:     out,
		CacheDir:   sampleCache,
		ClearCache: clearCache,
		Logger:     logger,
		OnVoiceStarted: func(noteID, ownerID string) {
			p.VoiceStarted(noteID, ownerID)
		},
	})
	if err != nil {
		if clearCache {
			os.RemoveAll(sampleCache)
		}
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer engine.Close()

	p = piano.New(engine, piano.WithLogger(logger))
	pack := samples.Pack{Name: packName(*packURL), URL: *packURL, Ext: *packExt}
	if err := p.AddPack(pack); err != nil {
		return err
	}
	go func() {
		if err := p.LoadPack(ctx, pack.Name); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("sound pack incomplete", zap.Error(err), zap.Int("loaded", p.LoadedCount()))
		}
	}()

	self := piano.Participant{ID: uuid.New().String(), Name: playerName, Color: *color}
	if self.Color == "" {
		self.Color = piano.DefaultColor
	}
	p.Join(self)
	local := func() piano.Participant { return self }

	var player keys.Player = p
	var rc *relay.Client
	roomAddr := ""

	addr, err := resolveRelay(ctx, logger)
	if err != nil {
		return err
	}
	if addr != "" {
		rc, err = relay.NewClient(relay.ClientConfig{
			ServerAddr: addr,
			ClientID:   self.ID,
			Name:       playerName,
			Color:      *color,
			Keyboard:   p,
			Buffer:     time.Duration(*bufferMs) * time.Millisecond,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		if err := rc.Connect(ctx); err != nil {
			return fmt.Errorf("failed to join relay %s: %w", addr, err)
		}
		defer rc.Close()

		player = rc
		local = rc.Self
		roomAddr = addr
		go func() {
			if err := rc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("relay session ended", zap.Error(err))
			}
		}()
	}

	sustain := keys.New(keys.Config{
		Player:      player,
		Local:       local,
		AutoSustain: *autoSustain,
		Synth:       func() bool { return *synth },
	})

	switch {
	case useTUI:
		t := ui.New(sustain, engine)
		p.SetVisualizer(t.Visualize)
		go statusLoop(ctx, t, engine, p, rc, roomAddr)
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		return t.Run()

	case *useREPL:
		fmt.Printf("%s, type help for commands\n", version.String())
		return repl.Run(&repl.Env{Player: player, Engine: engine, Pedal: sustain, Local: local}, os.Stdout)

	default:
		p.SetVisualizer(func(note, c string) {
			logger.Debug("note", zap.String("note", note), zap.String("color", c))
		})
		logger.Info("running without a front end, press Ctrl-C to stop")
		<-ctx.Done()
		logger.Info("shutdown signal received")
		return nil
	}
}

// resolveRelay returns the relay address from -server, or browses for -room
func resolveRelay(ctx context.Context, logger *zap.Logger) (string, error) {
	if *serverAddr != "" {
		return *serverAddr, nil
	}
	if *room == "" {
		return "", nil
	}

	disc := discovery.NewManager(discovery.Config{Logger: logger})
	defer disc.Stop()

	findCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	server, err := disc.Find(findCtx, *room)
	if err != nil {
		return "", err
	}
	logger.Info("discovered relay", zap.String("room", server.Name), zap.String("addr", server.Addr()))
	return server.Addr(), nil
}

// statusLoop periodically updates the TUI with engine and relay state
func statusLoop(ctx context.Context, t *ui.TUI, engine *piano.Engine, p *piano.Piano, rc *relay.Client, room string) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := engine.Stats()
			msg := ui.StatusMsg{
				Loaded:  p.LoadedCount(),
				Voices:  stats.Sounding,
				Pending: stats.Pending,
			}
			if rc != nil {
				connected := true
				offset, rtt, quality := rc.Clock().Stats()
				msg.Connected = &connected
				msg.Room = room
				msg.Participants = len(p.Participants())
				msg.SyncOffset = offset
				msg.SyncRTT = rtt
				msg.SyncQuality = quality
			}
			t.Update(msg)
		}
	}
}

// packName derives a display name from a pack location
func packName(loc string) string {
	n := filepath.Base(strings.TrimRight(loc, "/"))
	if n == "." || n == "/" || n == "" {
		return "default"
	}
	return n
}
