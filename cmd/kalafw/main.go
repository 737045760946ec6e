package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"kalafw/internal/api"
	"kalafw/internal/config"
	"kalafw/internal/console"
	coreerrors "kalafw/internal/core/errors"
	"kalafw/internal/executor"
	"kalafw/internal/firewall"
	"kalafw/internal/history"
	"kalafw/internal/logging"
	"kalafw/internal/metrics"
	"kalafw/internal/ui"
)

var (
	defaultConfigPath = "kalafw.yaml"
	version           = "dev" // can be set at build time with -ldflags
)

func main() {
	app := &cli.App{
		Name:    "kalafw",
		Usage:   "Interactive default-deny firewall with an IP allow-list",
		Version: version,
		Flags:   globalFlags(),
		Action:  run,
		Commands: []*cli.Command{
			{
				Name:  "init-config",
				Usage: "Write the default configuration to --config",
				Action: func(c *cli.Context) error {
					logger := logging.NewLoggerFromEnv()
					defer logger.Sync()

					path := c.String("config")
					if _, err := os.Stat(path); err == nil {
						return cli.Exit(fmt.Sprintf("%s already exists", path), 1)
					}
					if err := config.SaveConfig(config.Default(), path, logger); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Printf("Default config written to %s\n", path)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   defaultConfigPath,
			Usage:   "Path to kalafw.yaml",
			EnvVars: []string{"KALAFW_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "rules",
			Usage: "File with one IP address per line to allow at start",
		},
		&cli.StringFlag{
			Name:  "history-file",
			Usage: "Command history file",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Firewall backend: exec, go-iptables or dry-run",
		},
		&cli.BoolFlag{
			Name:  "no-sudo",
			Usage: "Run the firewall binary without sudo",
		},
		&cli.StringFlag{
			Name:  "status-addr",
			Usage: "Serve the read-only status API on this address",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "print-config",
			Usage: "Print the effective configuration and exit",
		},
	}
}

// applyFlags lets command line flags override the config file.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("rules") {
		cfg.Session.RulesFile = c.String("rules")
	}
	if c.IsSet("history-file") {
		cfg.Session.HistoryFile = c.String("history-file")
	}
	if c.IsSet("backend") {
		cfg.Firewall.Backend = c.String("backend")
	}
	if c.Bool("no-sudo") {
		cfg.Firewall.Sudo = false
	}
	if c.IsSet("status-addr") {
		cfg.Status.Enabled = true
		cfg.Status.Addr = c.String("status-addr")
	}
	if c.Bool("no-color") {
		cfg.Session.NoColor = true
	}
	if c.Bool("debug") || os.Getenv("LOG_LEVEL") == "debug" {
		cfg.Logging.Debug = true
	}
}

// loadConfig reads --config, applies the flag overrides and validates the
// result.
func loadConfig(c *cli.Context, logger *logging.Logger) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"), logger)
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	bootLogger := logging.NewLoggerFromEnv()

	cfg, err := loadConfig(c, bootLogger)
	if err != nil {
		bootLogger.Error("Failed to load configuration", err)
		if errors.Is(err, coreerrors.ErrInvalidConfig) {
			bootLogger.Info("Run 'kalafw init-config' to write a fresh default configuration")
		}
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("print-config") {
		b, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(b))
		return nil
	}

	logger := logging.NewLoggerWithOutput(cfg.Logging.Debug, cfg.Logging.File)
	defer logger.Sync()
	logger.Info("kalafw version", logging.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	printer := ui.NewPrinter(os.Stdout, cfg.Session.NoColor || color.NoColor)
	collector := metrics.NewCollector()

	exec, err := executor.New(cfg.Firewall, logger.Named("executor"), collector)
	if err != nil {
		logger.Error("Failed to create firewall executor", err)
		return cli.Exit(err.Error(), 1)
	}

	store, err := history.NewStore(cfg)
	if err != nil {
		logger.Warn("History store unavailable, history will not be saved", logging.Error(err))
		store = history.NopStore{}
	}
	defer store.Close()

	reader, err := console.NewReadline(printer.Prompt(cfg.Session.Prompt), os.Stdout, os.Stderr)
	if err != nil {
		logger.Error("Failed to open terminal", err)
		return cli.Exit(err.Error(), 1)
	}
	defer reader.Close()

	printer.Banner()
	logger.LogSessionStart(exec.Name())

	monitor := firewall.New(ctx, firewall.Dependencies{
		Executor: exec,
		Printer:  printer,
		Logger:   logger.Named("firewall"),
		Metrics:  collector,
	}, "")

	// From here on the host is at DROP; every way out of run must restore it.
	cleanup := console.NewGuard(func() {
		monitor.CleanupRules(context.WithoutCancel(ctx))
	})
	defer cleanup.Release()

	if cfg.Session.RulesFile != "" {
		monitor.LoadRulesFromFile(ctx, cfg.Session.RulesFile)
	}

	session := console.NewSession(console.Options{
		SaveHistoryOnInterrupt: cfg.Session.SaveHistoryOnInterrupt,
		Cleanup:                cleanup,
	}, reader, monitor, store, printer, logger.Named("console"), collector)

	if cfg.Status.Enabled {
		statusAPI := api.NewStatusAPI(cfg.Status, monitor, session.History(), collector, logger.Named("api"), version)
		srv := api.Start(cfg.Status.Addr, statusAPI, logger.Named("api"))
		defer srv.Shutdown()
	}

	session.Start(ctx)
	session.Run(ctx)
	return nil
}
