package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"universal-browser-mcp/internal/browser"
	"universal-browser-mcp/internal/config"
	"universal-browser-mcp/internal/logging"
	mcpserver "universal-browser-mcp/internal/mcp"
	"universal-browser-mcp/internal/recorder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// options holds the raw command-line values; apply folds the ones the user
// actually set over the loaded config.
type options struct {
	configPath  string
	browser     string
	headless    bool
	headful     bool
	debug       bool
	browserArgs []string
	driver      string
	ssePort     int
	logFile     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "universal-browser-mcp",
		Short: "MCP server exposing browser automation over stdio",
		Long: `Serve browser automation tools (navigate, click, type, screenshots,
multi-page management) to an MCP client.

The browser is launched lazily on the first tool call and closed on exit.

Examples:
  universal-browser-mcp
  universal-browser-mcp --browser firefox --headful
  universal-browser-mcp -b chrome --browser-arg=--lang=en-US --debug
  universal-browser-mcp --config ./config.yaml --sse-port 8931`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.Flags(), opts)
		},
	}
	bindFlags(cmd.Flags(), opts)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	fs.StringVarP(&opts.browser, "browser", "b", string(config.DefaultEngine),
		"browser engine ("+strings.Join(config.EngineNames(), ", ")+")")
	fs.BoolVar(&opts.headless, "headless", true, "run the browser headless")
	fs.BoolVar(&opts.headful, "headful", false, "run the browser with a visible window (overrides --headless)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.StringArrayVar(&opts.browserArgs, "browser-arg", nil, "extra browser launch argument (repeatable)")
	fs.StringVar(&opts.driver, "driver", config.DriverPlaywright,
		"automation driver ("+config.DriverPlaywright+" or "+config.DriverRod+")")
	fs.IntVar(&opts.ssePort, "sse-port", 0, "serve over SSE on this port instead of stdio")
	fs.StringVar(&opts.logFile, "log-file", "", "append logs to this file instead of stderr")
}

// apply overlays explicitly set flags onto cfg and re-validates it.
func (o *options) apply(cfg *config.Config, fs *pflag.FlagSet) error {
	if fs.Changed("browser") {
		engine, ok := config.ResolveEngine(o.browser)
		if !ok {
			return fmt.Errorf("invalid --browser %q (choose from %s)", o.browser, strings.Join(config.EngineNames(), ", "))
		}
		cfg.Browser.Engine = string(engine)
	}

	switch {
	case fs.Changed("headful") && o.headful:
		headless := false
		cfg.Browser.Headless = &headless
	case fs.Changed("headless"):
		headless := o.headless
		cfg.Browser.Headless = &headless
	}

	if fs.Changed("debug") {
		cfg.Server.Debug = o.debug
	}
	if len(o.browserArgs) > 0 {
		cfg.Browser.Args = append(cfg.Browser.Args, o.browserArgs...)
	}
	if fs.Changed("driver") {
		cfg.Browser.Driver = o.driver
	}
	if fs.Changed("sse-port") {
		cfg.MCP.SSEPort = o.ssePort
	}
	if fs.Changed("log-file") {
		cfg.Server.LogFile = o.logFile
	}
	return cfg.Validate()
}

func run(ctx context.Context, fs *pflag.FlagSet, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := opts.apply(&cfg, fs); err != nil {
		return err
	}

	log, logCloser, err := logging.New(cfg.Server)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	launcher, err := browser.LauncherFor(cfg.Browser.Driver)
	if err != nil {
		return err
	}
	if pw, ok := launcher.(*browser.PlaywrightLauncher); ok && cfg.Server.Debug {
		pw.Output = os.Stderr
	}

	sessions := browser.NewSessionManager(cfg.Browser, launcher, log)
	defer func() {
		if err := sessions.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("browser shutdown failed")
		}
	}()

	server, err := mcpserver.NewServer(cfg, sessions, log)
	if err != nil {
		return fmt.Errorf("initialize MCP server: %w", err)
	}

	if cfg.Server.TraceDir != "" {
		rec, err := recorder.New(cfg.Server.TraceDir, cfg.Server.GetTraceKeep())
		if err != nil {
			return fmt.Errorf("open call trace: %w", err)
		}
		if err := rec.Start(uuid.NewString()); err != nil {
			return fmt.Errorf("start call trace: %w", err)
		}
		defer rec.Close()
		server.SetRecorder(rec)
	}

	engine, _ := config.ResolveEngine(cfg.Browser.Engine)
	entry := log.WithFields(logrus.Fields{
		"engine":   engine,
		"headless": cfg.Browser.IsHeadless(),
		"driver":   cfg.Browser.Driver,
	})

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		entry.WithField("port", cfg.MCP.SSEPort).Infof("starting %s SSE server", cfg.Server.Name)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		entry.Infof("starting %s stdio server", cfg.Server.Name)
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.WithError(startErr).Error("server exited with error")
		return startErr
	}
	return nil
}
