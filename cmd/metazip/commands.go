package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"metazip/internal/cleaner"
	"metazip/internal/codec"
	"metazip/internal/config"
	"metazip/internal/engine"
	"metazip/internal/format"
	"metazip/internal/logger"
	"metazip/internal/statistics"
	"metazip/internal/verify"
	"metazip/internal/web"
)

const shutdownTimeout = 30 * time.Second

// runInspect prints the metadata of one image grouped by category.
func runInspect(w io.Writer, path string, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine.Init(setupLogger(cfg))

	data, err := readImage(path, cfg.Limits.MaxFileSize)
	if err != nil {
		return err
	}

	eng := newEngine(cfg)
	if asJSON {
		raw, err := eng.ExtractMetadataJSON(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	f, _ := format.Detect(data)
	res := eng.ExtractMetadata(data)

	fmt.Fprintf(w, "%s (%s, %s)\n", filepath.Base(path), f, humanize.Bytes(uint64(len(data))))
	if res.Empty() {
		fmt.Fprintln(w, "No metadata found")
		return nil
	}

	for _, g := range res.Grouped() {
		fmt.Fprintf(w, "\n%s:\n", g.Category.Label())
		for _, item := range g.Items {
			fmt.Fprintf(w, "  %-28s %s\n", item.Key, item.Value)
		}
	}

	fmt.Fprintf(w, "\n%d tags", len(res.Items))
	if res.Sensitive() {
		fmt.Fprint(w, " (contains")
		sep := " "
		for _, flag := range []struct {
			set  bool
			name string
		}{{res.HasGPS, "location"}, {res.HasCamera, "camera"}, {res.HasDateTime, "date/time"}} {
			if flag.set {
				fmt.Fprint(w, sep+flag.name)
				sep = ", "
			}
		}
		fmt.Fprint(w, " data)")
	}
	fmt.Fprintln(w)
	return nil
}

// runStrip cleans every given file and directory.
func runStrip(ctx context.Context, w io.Writer, paths []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := setupLogger(cfg)
	engine.Init(log)

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := statistics.NewStatistics()
	opts := []cleaner.Option{}
	if v := newVerifier(cfg, log); v != nil {
		defer v.Close()
		opts = append(opts, cleaner.WithVerifier(v))
	}
	c := cleaner.NewDefaultCleaner(cfg, log, stats, opts...)

	batch, err := c.Clean(ctx, cleaner.Params{
		InputPaths: paths,
		OutputDir:  outputDir,
		DryRun:     dryRun || cfg.Processing.DryRun,
		Zip:        zipOutput,
	})
	if err != nil && batch == nil {
		return fmt.Errorf("cleaning failed: %w", err)
	}

	failed := 0
	for _, res := range batch.Results {
		if !res.Success() {
			failed++
		}
		if !quiet || !res.Success() {
			printResult(w, res)
		}
	}
	if batch.Archive != "" && !quiet {
		fmt.Fprintf(w, "\nArchive: %s\n", batch.Archive)
	}
	if !quiet {
		fmt.Fprintln(w, "\n"+stats.GetSummary())
	}

	if err != nil {
		return fmt.Errorf("cleaning failed: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be cleaned", failed, len(batch.Results))
	}
	return nil
}

func printResult(w io.Writer, res cleaner.FileResult) {
	switch res.Action {
	case cleaner.ActionCleaned:
		fmt.Fprintf(w, "cleaned    %s -> %s (%d tags, saved %s)\n",
			res.InputPath, res.OutputPath, res.ItemsRemoved, res.Savings)
	case cleaner.ActionUnchanged:
		fmt.Fprintf(w, "unchanged  %s -> %s (no metadata)\n", res.InputPath, res.OutputPath)
	case cleaner.ActionDryRun:
		fmt.Fprintf(w, "dry-run    %s -> %s (%d tags)\n", res.InputPath, res.OutputPath, res.ItemsRemoved)
	case cleaner.ActionSkipped:
		fmt.Fprintf(w, "skipped    %s (%s)\n", res.InputPath, res.Message)
	default:
		fmt.Fprintf(w, "%-10s %s: %s\n", res.Action, res.InputPath, res.Message)
	}
	if len(res.Residual) > 0 {
		fmt.Fprintf(w, "           residual metadata: %v\n", res.Residual)
	}
}

// runDimensions prints WIDTHxHEIGHT for one image.
func runDimensions(w io.Writer, path string, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine.Init(setupLogger(cfg))

	data, err := readImage(path, cfg.Limits.MaxFileSize)
	if err != nil {
		return err
	}

	eng := newEngine(cfg)
	if asJSON {
		raw, err := eng.GetDimensionsJSON(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	dims, err := eng.GetDimensions(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%dx%d\n", dims.Width, dims.Height)
	return err
}

// runSavings prints the reduction from original to cleaned bytes.
func runSavings(w io.Writer, original, cleaned string, asJSON bool) error {
	before, err := parseSize(original)
	if err != nil {
		return err
	}
	after, err := parseSize(cleaned)
	if err != nil {
		return err
	}

	if asJSON {
		raw := engine.CalculateSavingsJSON(before, after)
		if raw == nil {
			raw = []byte("null")
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	_, err = fmt.Fprintf(w, "Saved %s\n", engine.CalculateSavings(before, after))
	return err
}

func parseSize(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid byte count %q: must be an integer between 0 and %d", s, uint32(1<<32-1))
	}
	return uint32(n), nil
}

// runServe starts the web server and stops it on SIGINT or SIGTERM.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := setupLogger(cfg)
	engine.Init(log)

	listenPort := cfg.Server.Port
	if port > 0 {
		listenPort = port
	}

	opts := []web.Option{web.WithVersion(version)}
	if v := newVerifier(cfg, log); v != nil {
		defer v.Close()
		opts = append(opts, web.WithVerifier(v))
	}
	server := web.NewServer(cfg, log, opts...)

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(listenPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("Server stopped")
		return nil
	})

	return g.Wait()
}

// loadConfig loads the configuration named by --config, or the default
// search path when unset.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	log, err := logger.NewLogger(logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	})
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.Warnf("Falling back to default logger: %v", err)
	}
	logger.ApplyVerbosity(log, verbose, quiet)
	return log
}

// newEngine builds an engine whose codec settings come from cfg.
func newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(engine.WithCodecOptions(
		codec.WithJPEGQuality(cfg.Processing.JPEGQuality),
		codec.WithTIFFCompression(cfg.TIFFCompressionType()),
		codec.WithMaxDecodeBytes(cfg.Limits.MaxDecodeBytes),
	))
}

// newVerifier starts exiftool when verification is enabled. It returns nil
// when disabled or when exiftool cannot be started.
func newVerifier(cfg *config.Config, log *logrus.Logger) verify.Verifier {
	if !cfg.Processing.VerifyWithExiftool {
		return nil
	}
	v, err := verify.NewExiftoolVerifier()
	if err != nil {
		log.Warnf("Verification disabled: %v", err)
		return nil
	}
	return v
}

// readImage reads path, refusing files above limit.
func readImage(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %s, limit is %s", cleaner.ErrFileTooLarge,
			path, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(limit)))
	}
	return os.ReadFile(path)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
