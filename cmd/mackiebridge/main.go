package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"mackiebridge/internal/host"
	"mackiebridge/internal/hostlink"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/surface"
)

const version = "0.1.0"

// Environment variables, also read from a .env file in the working directory.
const (
	envConfigPath = "MACKIEBRIDGE_CONFIG"
	envLogLevel   = "MACKIEBRIDGE_LOG_LEVEL"
)

func printVersion() {
	fmt.Printf("mackiebridge v%s\n", version)
	fmt.Println("Mackie Control Universal bridge for DAW host scripting")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  mackiebridge [OPTIONS]")
	fmt.Println("  mackiebridge ports [OPTIONS]")
	fmt.Println("  mackiebridge watch [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that drives a Mackie Control main unit (plus optional extenders)")
	fmt.Println("  over MIDI and bridges it to a host bridge script over WebSocket.")
	fmt.Println("  Buttons, faders, encoders and the jog wheel become host commands;")
	fmt.Println("  host state is mirrored back to LEDs, rings, motor faders and displays.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Printf("        Path to YAML config file (env %s)\n", envConfigPath)
	fmt.Println()
	fmt.Println("  -main-in string")
	fmt.Println("        MIDI input port name of the main unit (substring match)")
	fmt.Println()
	fmt.Println("  -main-out string")
	fmt.Println("        MIDI output port name of the main unit (substring match)")
	fmt.Println()
	fmt.Println("  -initial-mode string")
	fmt.Println("        Encoder mode at startup: send, pan, plugin, eq, instrument, track (default \"pan\")")
	fmt.Println()
	fmt.Println("  -host-ws-url string")
	fmt.Println("        Host bridge websocket URL (default \"ws://127.0.0.1:8765\")")
	fmt.Println()
	fmt.Println("  -status-listen string")
	fmt.Println("        Status server listen address (default \"127.0.0.1:3002\")")
	fmt.Println()
	fmt.Println("  -status-enabled")
	fmt.Println("        Enable the status server (default true)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Printf("        Log level: error, warn, info, debug (default \"info\", env %s)\n", envLogLevel)
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  ports")
	fmt.Println("        List MIDI ports and highlight the configured ones")
	fmt.Println("  watch")
	fmt.Println("        Print state events from a running daemon's status server")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  mackiebridge -config ~/.config/mackiebridge.yaml")
	fmt.Println()
	fmt.Println("  # Find the right port names")
	fmt.Println("  mackiebridge ports")
	fmt.Println()
	fmt.Println("  # Follow mode and modifier changes")
	fmt.Println("  mackiebridge watch")
	fmt.Println()
	fmt.Println("  # Override the main unit ports")
	fmt.Println("  mackiebridge -main-in \"X-Touch\" -main-out \"X-Touch\"")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Flags override the config file; the config file overrides defaults")
	fmt.Println("  - Extenders that are not connected are skipped")
	fmt.Println("  - On exit all LEDs, rings, faders and displays are reset")
	fmt.Println()
}

func main() {
	// A missing .env file is fine.
	envErr := godotenv.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ports":
			os.Exit(runPortsSubcommand(os.Args[2:]))
		case "watch":
			os.Exit(runWatchSubcommand(os.Args[2:]))
		}
	}

	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", os.Getenv(envConfigPath), "Path to YAML config file")
		mainIn        = flag.String("main-in", "", "MIDI input port name of the main unit")
		mainOut       = flag.String("main-out", "", "MIDI output port name of the main unit")
		initialMode   = flag.String("initial-mode", "", "Encoder mode at startup")
		hostWsURL     = flag.String("host-ws-url", "", "Host bridge websocket URL")
		statusListen  = flag.String("status-listen", "", "Status server listen address")
		statusEnabled = flag.Bool("status-enabled", true, "Enable the status server")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		_             = flag.Bool("version", false, "Print version and exit")
		_             = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if lvl := os.Getenv(envLogLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "main-in":
			o.MainIn = mainIn
		case "main-out":
			o.MainOut = mainOut
		case "initial-mode":
			o.InitialMode = initialMode
		case "host-ws-url":
			o.HostWsURL = hostWsURL
		case "status-listen":
			o.StatusListen = statusListen
		case "status-enabled":
			o.StatusEnabled = statusEnabled
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	os.Exit(run(cfg, logger))
}

// run starts the daemon and blocks until a signal arrives. It returns the
// process exit code.
func run(cfg Config, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer midi.CloseDriver()

	logger.Debug("starting mackiebridge", "version", version)
	logger.Debug("configuration",
		"main_in", cfg.Surface.Main.In,
		"main_out", cfg.Surface.Main.Out,
		"extenders", len(cfg.Surface.Extenders),
		"initial_mode", cfg.Surface.InitialMode,
		"host_ws_url", cfg.Host.WsURL,
		"status_enabled", cfg.Status.Enabled,
		"status_listen", cfg.Status.Listen)

	available, err := mcu.Scan(time.Duration(cfg.Surface.ScanTimeoutMS) * time.Millisecond)
	if err != nil {
		logger.Error("failed to enumerate MIDI ports", "error", err)
		return 1
	}

	// Central event bus; everything the surface sees goes through it.
	events := make(chan Event, 256)

	ports, err := openSections(ctx, scannedPorts{list: available}, cfg.Surface, events, logger)
	if err != nil {
		ins, outs := available.Names()
		logger.Error("failed to open MIDI ports", "error", err, "inputs", ins, "outputs", outs,
			"tip", "run 'mackiebridge ports' to list port names")
		return 1
	}
	defer closeSections(ports, logger)
	sections := surfacePorts(ports)

	linkLogger := componentLogger(logger, "hostlink")
	link, err := hostlink.NewClient(cfg.Host.WsURL, linkLogger, cfg.ToHostOptions())
	if err != nil {
		logger.Error("invalid host configuration", "error", err)
		return 1
	}
	model := host.NewModel(link, linkLogger)

	scfg := cfg.ToSurfaceConfig()
	scfg.Logger = componentLogger(logger, "surface")

	statusLogger := componentLogger(logger, "status")
	var notifier *statusNotifier
	if cfg.Status.Enabled {
		notifier = newStatusNotifier(256, statusLogger)
		scfg.Notifier = notifier
	}

	surf, err := surface.New(scfg, model, sections)
	if err != nil {
		logger.Error("failed to build surface", "error", err)
		return 1
	}
	surf.Start()

	if cfg.Status.Enabled {
		status := NewStatusServer(statusLogger, events, HubConfig{})
		go status.Hub().Run(ctx)
		go RunBroadcaster(ctx, status.Hub(), notifier.C(), statusLogger)

		handler := newStatusRouter(status, cfg.Status.CORSOrigins, logger.Enabled(ctx, slog.LevelDebug))
		go func() {
			if err := runStatusServer(ctx, cfg.Status.Listen, handler, statusLogger); err != nil {
				statusLogger.Error("status server error", "error", err)
			}
		}()
	}

	link.OnConnect(func() { postEvent(ctx, events, HostConnected{Up: true}) })
	link.OnDisconnect(func(error) { postEvent(ctx, events, HostConnected{Up: false}) })
	go func() {
		err := link.Run(ctx, func(o host.Observation) {
			postEvent(ctx, events, HostObserved{Obs: o})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			linkLogger.Error("host link stopped", "error", err)
		}
	}()

	logger.Info("listening",
		"sections", surf.Sections(),
		"host", cfg.Host.WsURL,
		"status", statusAddr(cfg))

	runDaemon(ctx, events, surf, surface.TickInterval, componentLogger(logger, "daemon"))

	logger.Info("shutting down")
	if err := surf.Shutdown(); err != nil {
		logger.Warn("surface reset incomplete", "error", err)
	}
	return 0
}

func statusAddr(cfg Config) string {
	if !cfg.Status.Enabled {
		return "disabled"
	}
	return cfg.Status.Listen
}
