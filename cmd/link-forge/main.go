// Package main provides the CLI entry point for link-forge.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/link-forge/internal/config"
	"github.com/lepinkainen/link-forge/internal/imageproc"
	"github.com/lepinkainen/link-forge/internal/server"
	"github.com/lepinkainen/link-forge/pkg/api"
	"github.com/lepinkainen/link-forge/pkg/cache"
	"github.com/lepinkainen/link-forge/pkg/fetch"
	"github.com/lepinkainen/link-forge/pkg/filesystem"
	"github.com/lepinkainen/link-forge/pkg/preview"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Serve struct {
		Addr string `help:"Listen address (overrides config)"`
	} `cmd:"serve" help:"Run the link-preview HTTP API."`

	Preview struct {
		URLs   []string `arg:"" name:"url" help:"URLs to preview."`
		Format string   `help:"Output format" enum:"card,json,yaml" default:"card"`
	} `cmd:"preview" help:"Fetch link previews and render them in the terminal."`

	Compress struct {
		File    string `arg:"" help:"Image file to compress."`
		Outfile string `help:"Write the JSON result to a file instead of stdout" short:"o"`
	} `cmd:"compress" help:"Downsample and base64-encode an image."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.link-forge/config.yaml"),
	)

	if CLI.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else if ctx.Command() == "serve" {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	} else {
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "path", CLI.Config, "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "serve":
		runServe(cfg)

	case "preview <url>":
		runPreview(cfg, CLI.Preview.URLs, CLI.Preview.Format)

	case "compress <file>":
		runCompress(cfg, CLI.Compress.File, CLI.Compress.Outfile)

	default:
		panic(ctx.Command())
	}
}

// buildService wires the fetch client, rate gate, retry wrapper and cache
// into the preview pipeline according to the configuration.
func buildService(cfg *config.Config) *preview.Service {
	clientCfg := fetch.DefaultConfig()
	clientCfg.Timeout = cfg.Preview.Timeout
	clientCfg.MaxBodyBytes = cfg.Preview.MaxBodyBytes
	client := fetch.NewClient(clientCfg)

	fetcher := api.NewRetryingFetcher(client, rateGate(cfg), &api.RetryPolicy{
		MaxAttempts: cfg.Preview.MaxRetries,
		Backoff:     cfg.Preview.RetryBackoff,
	})

	results := cache.New[preview.Result](cfg.Preview.CacheTTL, cfg.Preview.CacheSize)
	return preview.NewService(fetcher, results)
}

func rateGate(cfg *config.Config) api.RateLimiter {
	switch cfg.Preview.RateStrategy {
	case "none":
		return api.NewNoOpRateLimiter()
	case "token_bucket":
		tokens := int(cfg.Preview.MaxPerSecond)
		if tokens < 1 {
			tokens = 1
		}
		refill := time.Duration(float64(time.Second) / cfg.Preview.MaxPerSecond)
		return api.NewTokenBucketRateLimiter(tokens, refill)
	default:
		return api.NewIntervalRateLimiterPerSecond(cfg.Preview.MaxPerSecond)
	}
}

func imageOptions(cfg *config.Config) imageproc.Options {
	return imageproc.Options{
		MaxBytes:     cfg.Image.MaxBytes,
		MaxDimension: cfg.Image.MaxDimension,
		Quality:      cfg.Image.Quality,
	}
}

func runServe(cfg *config.Config) {
	addr := cfg.Server.Addr
	if CLI.Serve.Addr != "" {
		addr = CLI.Serve.Addr
	}

	handler := server.NewHandler(buildService(cfg), imageOptions(cfg))
	srv := server.New(addr, server.NewRouter(handler, cfg.Server.AllowedOrigins))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}

func runPreview(cfg *config.Config, urls []string, format string) {
	svc := buildService(cfg)

	results := make([]preview.Result, 0, len(urls))
	for _, rawURL := range urls {
		result, err := svc.GetPreview(context.Background(), rawURL)
		if err != nil {
			slog.Error("Invalid URL", "url", rawURL, "error", err)
			os.Exit(1)
		}
		results = append(results, result)
	}

	switch format {
	case "json":
		out, err := marshalResults(results, func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		})
		if err != nil {
			slog.Error("Failed to encode results", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(out))

	case "yaml":
		out, err := marshalResults(results, yaml.Marshal)
		if err != nil {
			slog.Error("Failed to encode results", "error", err)
			os.Exit(1)
		}
		fmt.Print(string(out))

	default:
		if len(results) == 1 {
			fmt.Println(preview.RenderCard(results[0], 80))
			return
		}
		if err := preview.RunTUI(results); err != nil {
			slog.Error("Preview failed", "error", err)
			os.Exit(1)
		}
	}
}

// marshalResults encodes a single result as an object and several as a list.
func marshalResults(results []preview.Result, marshal func(any) ([]byte, error)) ([]byte, error) {
	if len(results) == 1 {
		return marshal(results[0])
	}
	return marshal(results)
}

func runCompress(cfg *config.Config, file, outfile string) {
	data, err := os.ReadFile(file)
	if err != nil {
		slog.Error("Failed to read image", "path", file, "error", err)
		os.Exit(1)
	}

	compressed, err := imageproc.Compress(data, filepath.Base(file), imageOptions(cfg))
	if err != nil {
		slog.Error("Failed to compress image", "path", file, "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(compressed, "", "  ")
	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}

	if outfile == "" {
		fmt.Println(string(out))
		return
	}

	if err := filesystem.EnsureDirectoryExists(outfile); err != nil {
		slog.Error("Failed to create output directory", "path", outfile, "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outfile, append(out, '\n'), 0o644); err != nil {
		slog.Error("Failed to write output", "path", outfile, "error", err)
		os.Exit(1)
	}
	slog.Debug("Wrote compressed image", "path", outfile)
}
