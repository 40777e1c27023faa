// Command chatglot attaches to a live chat page and translates it both
// ways: incoming messages per the reading mode, outgoing compose text on
// a keyboard shortcut. A local HTTP API and optional MCP stdio transport
// expose settings and status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/chatglot/chatglot/chatwatch"
	"github.com/chatglot/chatglot/compose"
	"github.com/chatglot/chatglot/control"
	"github.com/chatglot/chatglot/internal/browser"
	"github.com/chatglot/chatglot/message"
	"github.com/chatglot/chatglot/reading"
	"github.com/chatglot/chatglot/selector"
	"github.com/chatglot/chatglot/settings"
	"github.com/chatglot/chatglot/translate"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		pageURL    = flag.String("url", "", "chat page URL (overrides config)")
		dbPath     = flag.String("db", "", "settings database path (overrides config)")
		listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "debug | info | warn | error")
		mcpStdio   = flag.Bool("mcp", false, "serve MCP tools on stdio")
	)
	flag.Parse()

	cfg := &Config{}
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg.applyDefaults()
	}
	if *pageURL != "" {
		cfg.URL = *pageURL
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if cfg.URL == "" {
		slog.Error("no chat page URL (use -url or config)")
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *mcpStdio, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("chatglot", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, mcpStdio bool, logger *slog.Logger) error {
	// Settings store.
	store, err := settings.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	current, err := store.Get(ctx)
	if err != nil {
		return err
	}

	// Translation engine.
	engine := translate.NewOpenAI(translate.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.Model,
		RateLimitRPS: cfg.OpenAI.RateLimitRPS,
		Logger:       logger,
	})

	// Browser.
	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	page, err := mgr.OpenPage(ctx, cfg.URL)
	if err != nil {
		return err
	}

	// Core pipeline.
	reg := selector.New(cfg.selectorOverrides())
	states := message.NewTable()
	extractor := message.NewExtractor(reg, states)
	actuator := chatwatch.NewPageActuator(page)

	orch := reading.New(reading.Config{
		States:     states,
		Engine:     engine,
		Actuator:   actuator,
		Logger:     logger,
		Mode:       current.ReadingMode,
		TargetLang: current.ReadingTargetLang,
	})

	injector := compose.New(compose.Config{
		Driver: compose.NewRodDriver(page, reg),
		Logger: logger,
	})
	writer := compose.NewWriter(compose.WriterConfig{
		Injector:   injector,
		Engine:     engine,
		Status:     actuator,
		Logger:     logger,
		Enabled:    current.WritingEnabled,
		TargetLang: current.WritingTargetLang,
		Shortcut:   current.Shortcut,
	})

	watcher := chatwatch.New(chatwatch.Config{
		Page:           page,
		Selectors:      reg,
		Extractor:      extractor,
		Logger:         logger,
		Shortcut:       current.Shortcut,
		DebounceWindow: cfg.Debounce.Window,
		DebounceMax:    cfg.Debounce.MaxBuffer,
		Events: chatwatch.Events{
			OnRecord: orch.Handle,
			OnToggle: orch.OnToggle,
			OnKeydown: func(ctx context.Context, ev settings.KeyEvent) {
				writer.OnKeydown(ctx, ev)
			},
			OnNavigate: func(ctx context.Context, url string) {
				orch.Reset()
			},
		},
	})
	defer watcher.Destroy()

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	// Settings change propagation.
	settingsWatcher := settings.NewWatcher(store, settings.WatchOptions{Logger: logger})
	go settingsWatcher.Run(ctx, func(s settings.Settings) {
		orch.SetMode(ctx, s.ReadingMode, s.ReadingTargetLang)
		writer.Configure(s.WritingEnabled, s.WritingTargetLang, s.Shortcut)
		if err := watcher.SetShortcut(ctx, s.Shortcut); err != nil {
			logger.Warn("push shortcut to page", "error", err)
		}
	})

	// Control surfaces.
	svc := control.New(store, orch, engine, injector, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.Listen)
		httpErr <- httpSrv.ListenAndServe()
	}()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutCancel()
		httpSrv.Shutdown(shutCtx)
	}()

	if mcpStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "chatglot",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio", "error", err)
			}
		}()
	}

	logger.Info("chatglot running", "url", cfg.URL, "mode", current.ReadingMode)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-watchErr:
		return fmt.Errorf("watcher: %w", err)
	case err := <-httpErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	}
}
