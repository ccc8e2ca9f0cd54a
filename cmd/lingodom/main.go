// Command lingodom translates HTML documents in place.
//
// Usage:
//
//	lingodom -file page.html -target es          # translate a local file
//	lingodom -url https://example.com -target fr # fetch and translate a page
//	lingodom -serve                              # HTTP API
//	lingodom -mcp                                # MCP server on stdio
package main

import (
	"context"
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

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/capability/lingva"
	"github.com/lingodom/lingodom/capability/llm"
	"github.com/lingodom/lingodom/detect"
	"github.com/lingodom/lingodom/engine"
	"github.com/lingodom/lingodom/fetch"
	"github.com/lingodom/lingodom/serve"
	"github.com/lingodom/lingodom/store"
)

func main() {
	configPath := flag.String("config", "", "path to lingodom.yaml config file")
	filePath := flag.String("file", "", "translate a local HTML file to stdout")
	pageURL := flag.String("url", "", "fetch and translate a page to stdout")
	target := flag.String("target", "", "target language (BCP 47, e.g. \"es\")")
	source := flag.String("source", "", "source language; empty = auto-detect")
	serveMode := flag.Bool("serve", false, "run the HTTP API")
	mcpMode := flag.Bool("mcp", false, "run the MCP server on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *filePath, *pageURL, *target, *source, *serveMode, *mcpMode); err != nil {
		logger.Error("lingodom: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, filePath, pageURL, target, source string, serveMode, mcpMode bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	factory, err := buildFactory(cfg, logger)
	if err != nil {
		return err
	}

	engCfg := cfg.Engine
	engCfg.Logger = logger
	engCfg.Detect = detect.Language

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath, store.WithMkdirAll())
		if err != nil {
			return err
		}
		defer st.Close()
		engCfg.Store = st
	}

	switch {
	case serveMode:
		return runServe(ctx, logger, factory, engCfg, cfg.Addr)
	case mcpMode:
		return runMCP(ctx, factory, engCfg)
	case filePath != "":
		if target == "" {
			return fmt.Errorf("-target is required with -file")
		}
		return runFile(ctx, factory, engCfg, filePath, target, source)
	case pageURL != "":
		if target == "" {
			return fmt.Errorf("-target is required with -url")
		}
		return runURL(ctx, logger, factory, engCfg, pageURL, target, source, cfg.Browser)
	}

	fmt.Fprintln(os.Stderr, "usage: lingodom -file <path> -target <lang> | -url <url> -target <lang> | -serve | -mcp")
	os.Exit(1)
	return nil
}

func buildFactory(cfg appConfig, logger *slog.Logger) (capability.Factory, error) {
	switch cfg.Provider {
	case "llm":
		llmCfg := cfg.LLM
		llmCfg.Logger = logger
		return llm.New(llmCfg), nil
	case "lingva":
		return lingva.New(cfg.Lingva), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func runFile(ctx context.Context, factory capability.Factory, engCfg engine.Config, path, target, source string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	out, err := engine.TranslateHTML(ctx, string(data), factory, engCfg, target, source)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runURL(ctx context.Context, logger *slog.Logger, factory capability.Factory, engCfg engine.Config, pageURL, target, source string, browser bool) error {
	opts := []fetch.Option{fetch.WithLogger(logger)}
	if browser {
		opts = append(opts, fetch.WithBrowser())
	}
	f := fetch.New(opts...)
	defer f.Close()

	res, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	out, err := engine.TranslateHTML(ctx, string(res.HTML), factory, engCfg, target, source)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, factory capability.Factory, engCfg engine.Config, addr string) error {
	svc := serve.NewService(factory, engCfg,
		serve.WithLogger(logger),
		serve.WithDetect(detect.Language))

	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lingodom: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func runMCP(ctx context.Context, factory capability.Factory, engCfg engine.Config) error {
	svc := serve.NewService(factory, engCfg, serve.WithDetect(detect.Language))

	srv := mcp.NewServer(&mcp.Implementation{Name: "lingodom", Version: "1.0.0"}, nil)
	svc.RegisterMCP(srv)

	return srv.Run(ctx, &mcp.StdioTransport{})
}
