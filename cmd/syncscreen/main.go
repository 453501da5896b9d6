// Package main provides the syncscreen entry point.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/syncscreen/internal/app/control"
	"github.com/osa030/syncscreen/internal/app/session"
	"github.com/osa030/syncscreen/internal/app/watchdog"
	"github.com/osa030/syncscreen/internal/domain/playlist"
	"github.com/osa030/syncscreen/internal/infra/config"
	"github.com/osa030/syncscreen/internal/infra/logger"
	"github.com/osa030/syncscreen/internal/infra/mpv"
	"github.com/osa030/syncscreen/internal/infra/terminal"
	"github.com/osa030/syncscreen/internal/infra/window"
)

var (
	app         = kingpin.New("syncscreen", "Play the same media in sync on several windows")
	configPath  = app.Flag("config", "Path to config file (default: built-in defaults)").String()
	windows     = app.Flag("windows", "Number of output windows (default: one per secondary monitor)").Short('w').Int()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging and keep engine output").Short('v').Bool()
	shuffle     = app.Flag("shuffle", "Shuffle the playlist").Short('s').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
	noPlacement = app.Flag("no-placement", "Do not move windows onto monitors").Bool()

	playCmd = app.Command("play", "Play media files (default)").Default()
	media   = playCmd.Arg("media", "Media files to play").Required().Strings()

	monitorsCmd = app.Command("monitors", "List detected monitors and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Raw mode disables output post-processing, so log lines need CRLF.
	loggerConfig := logger.Config{
		Level:  "info",
		File:   *logfile,
		Writer: terminal.CRLFWriter{W: os.Stderr},
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if command == monitorsCmd.FullCommand() {
		if err := printMonitors(); err != nil {
			zlog.Error().Msgf("Failed to list monitors: %v", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Config file settings apply unless overridden on the command line
	if !*verbose && cfg.Log.Level != "" {
		loggerConfig.Level = cfg.Log.Level
	}
	if loggerConfig.File == "" {
		loggerConfig.File = cfg.Log.File
	}
	if err := logger.Init(loggerConfig); err != nil {
		zlog.Error().Msgf("Failed to initialize logger: %v", err)
		os.Exit(1)
	}

	err = run(cfg, *media)
	if err != nil {
		zlog.Error().Msgf("syncscreen: %v", err)
	}
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the main logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, paths []string) error {
	pl, errs := playlist.Collect(paths)
	for _, err := range errs {
		if !errors.Is(err, playlist.ErrEmptyPlaylist) {
			zlog.Warn().Msgf("Skipping: %v", err)
		}
	}
	if pl == nil {
		return playlist.ErrEmptyPlaylist
	}
	if *shuffle || cfg.Playback.Shuffle {
		pl = pl.Shuffled(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
	}

	settings, err := mpv.NewSettings(cfg.Engine.Settings)
	if err != nil {
		return errors.Wrap(err, "invalid engine settings")
	}

	manager := windowManager(cfg.Windows.Backend)
	count := windowCount(cfg, manager)

	sessionMgr, err := session.NewManager(session.Config{
		Windows:      count,
		TitlePrefix:  cfg.Windows.TitlePrefix,
		Verbose:      *verbose,
		LoadDelay:    cfg.Playback.LoadDelay(),
		LoopMode:     cfg.Playback.InitialLoopMode(),
		Volume:       cfg.Playback.InitialVolume(),
		Placement:    cfg.Windows.PlacementEnabled() && !*noPlacement,
		FindRetries:  cfg.Windows.FindRetries,
		FindInterval: cfg.Windows.FindInterval(),
		Watchdog: watchdog.Config{
			AdjustTime:   cfg.Playback.AdjustTime(),
			StartOffset:  cfg.Playback.StartOffset(),
			PollInterval: cfg.Playback.PollInterval(),
		},
	}, pl, mpv.NewFactory(settings, cfg.Windows.TitlePrefix), manager, os.Stdout)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keyboard, err := terminal.OpenKeyboard()
	if err != nil {
		return err
	}
	defer func() {
		if err := keyboard.Close(); err != nil {
			zlog.Warn().Msgf("Failed to restore terminal: %v", err)
		}
	}()

	zlog.Info().Msgf("Playing %d tracks on %d windows", pl.Len(), count)
	zlog.Info().Msg(control.HelpLine())

	if err := sessionMgr.Run(ctx, keyboard.Keys()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func windowManager(backend string) window.Manager {
	if backend == "none" {
		return window.Noop{}
	}
	x11, err := window.NewX11()
	if err != nil {
		zlog.Warn().Msgf("Window management disabled: %v", err)
		return nil
	}
	return x11
}

func windowCount(cfg *config.Config, manager window.Manager) int {
	switch {
	case *windows > 0:
		return *windows
	case cfg.Windows.Count > 0:
		return cfg.Windows.Count
	case manager == nil:
		return 1
	}

	monitors, err := manager.Monitors()
	if err != nil {
		zlog.Warn().Msgf("Failed to list monitors: %v", err)
		return 1
	}
	return window.DefaultCount(monitors)
}

func printMonitors() error {
	x11, err := window.NewX11()
	if err != nil {
		return err
	}
	monitors, err := x11.Monitors()
	if err != nil {
		return err
	}
	for i, m := range monitors {
		primary := ""
		if m.Primary {
			primary = " (primary)"
		}
		fmt.Printf("%d: %s %dx%d+%d+%d%s\n", i, m.Name, m.Rect.W, m.Rect.H, m.Rect.X, m.Rect.Y, primary)
	}
	fmt.Printf("default window count: %d\n", window.DefaultCount(monitors))
	return nil
}
