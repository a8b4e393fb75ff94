package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"metazip/internal/archive"
	"metazip/internal/codec"
	"metazip/internal/config"
	"metazip/internal/engine"
	"metazip/internal/format"
	"metazip/internal/logger"
	"metazip/internal/statistics"
	"metazip/internal/stripper"
	"metazip/internal/verify"
)

// DefaultCleaner is the default implementation of the Cleaner interface.
type DefaultCleaner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	stats    *statistics.Statistics
	engine   *engine.Engine
	verifier verify.Verifier
	progress ProgressFunc
	now      func() time.Time
}

// Option configures a DefaultCleaner.
type Option func(*DefaultCleaner)

// WithEngine replaces the engine built from the configuration.
func WithEngine(e *engine.Engine) Option {
	return func(c *DefaultCleaner) { c.engine = e }
}

// WithVerifier checks every written file for residual metadata.
func WithVerifier(v verify.Verifier) Option {
	return func(c *DefaultCleaner) { c.verifier = v }
}

// WithProgress installs a callback invoked after each input.
func WithProgress(fn ProgressFunc) Option {
	return func(c *DefaultCleaner) { c.progress = fn }
}

// NewDefaultCleaner creates a DefaultCleaner whose encoder settings come
// from cfg.
func NewDefaultCleaner(cfg *config.Config, log *logrus.Logger, stats *statistics.Statistics, opts ...Option) *DefaultCleaner {
	c := &DefaultCleaner{
		cfg:    cfg,
		logger: log,
		stats:  stats,
		engine: engine.New(engine.WithCodecOptions(
			codec.WithJPEGQuality(cfg.Processing.JPEGQuality),
			codec.WithTIFFCompression(cfg.TIFFCompressionType()),
			codec.WithMaxDecodeBytes(cfg.Limits.MaxDecodeBytes),
		)),
		verifier: verify.NopVerifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns the statistics the cleaner records into.
func (c *DefaultCleaner) Stats() *statistics.Statistics { return c.stats }

// run holds the state shared by the workers of one Clean call.
type run struct {
	outDir  string
	dryRun  bool
	mu      sync.Mutex
	claimed map[string]struct{}
}

func (r *run) isClaimed(path string) bool {
	_, ok := r.claimed[path]
	return ok
}

// Clean performs metadata removal according to the provided parameters.
func (c *DefaultCleaner) Clean(ctx context.Context, params Params) (*Batch, error) {
	c.logger.Info("Starting metadata cleaning run")
	defer c.stats.Finalize()

	files, err := c.collectFiles(params.InputPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoInputs
	}
	c.logger.Infof("Found %d image files to process", len(files))

	r := &run{
		outDir:  params.OutputDir,
		dryRun:  params.DryRun || c.cfg.Processing.DryRun,
		claimed: make(map[string]struct{}),
	}
	if r.outDir == "" {
		r.outDir = c.cfg.OutputDirectory
	}
	if r.dryRun {
		c.logger.Info("Running in dry-run mode - no files will be written")
	} else if r.outDir != "" {
		if err := os.MkdirAll(r.outDir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	bundle := params.Zip && !r.dryRun && archive.ShouldZip(len(files), c.cfg.Processing.ZipThreshold)
	batch := &Batch{Results: make([]FileResult, len(files))}
	held := make([][]byte, len(files))

	c.forEach(len(files), func(i int) FileResult {
		res, data := c.cleanFile(ctx, files[i])
		if res.Success() {
			if bundle {
				held[i] = data
			} else {
				c.emit(ctx, r, &res, data)
			}
		}
		batch.Results[i] = res
		return res
	})

	if bundle {
		c.finishBundle(ctx, r, batch, held)
	}

	c.logger.Info("Metadata cleaning completed")
	return batch, ctx.Err()
}

// CleanItems cleans in-memory images concurrently.
func (c *DefaultCleaner) CleanItems(ctx context.Context, items []Item) []Output {
	out := make([]Output, len(items))
	c.forEach(len(items), func(i int) FileResult {
		res := FileResult{InputPath: items[i].Name, StartedAt: c.now()}
		c.stats.IncrementFilesFound()
		c.stats.IncrementFilesProcessed()

		data, err := c.cleanData(ctx, &res, items[i].Data)
		if err != nil {
			c.fail(&res, "clean", err)
		} else {
			res.OutputPath = CleanName(items[i].Name, c.cfg.OutputSuffix, res.Format)
			c.record(&res)
			out[i].Data = data
		}
		res.FinishedAt = c.now()
		out[i].Result = res
		return res
	})
	return out
}

// forEach runs fn for indexes [0, n) on the configured number of workers
// and reports progress after each call.
func (c *DefaultCleaner) forEach(n int, fn func(i int) FileResult) {
	workers := c.cfg.Performance.WorkerThreads
	if workers <= 0 {
		workers = 4
	}

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			res := fn(i)
			if c.progress != nil {
				mu.Lock()
				done++
				c.progress(done, n, res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// cleanFile reads and cleans one file. The returned data is nil unless the
// result is successful.
func (c *DefaultCleaner) cleanFile(ctx context.Context, path string) (FileResult, []byte) {
	res := FileResult{InputPath: path, StartedAt: c.now()}
	if err := ctx.Err(); err != nil {
		c.fail(&res, "cancel", err)
		return res, nil
	}
	c.stats.IncrementFilesProcessed()
	c.logger.Debugf("Processing file: %s", path)

	info, err := os.Stat(path)
	if err != nil {
		c.fail(&res, "stat", err)
		return res, nil
	}
	if info.Size() > c.cfg.Limits.MaxFileSize {
		res.OriginalSize = info.Size()
		c.fail(&res, "size_check", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), c.cfg.Limits.MaxFileSize))
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.fail(&res, "read", err)
		return res, nil
	}

	cleaned, err := c.cleanData(ctx, &res, data)
	if err != nil {
		c.fail(&res, "clean", err)
		return res, nil
	}
	return res, cleaned
}

// cleanData strips data and fills in the size and metadata fields of res.
func (c *DefaultCleaner) cleanData(ctx context.Context, res *FileResult, data []byte) ([]byte, error) {
	res.OriginalSize = int64(len(data))
	if res.OriginalSize > c.cfg.Limits.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, res.OriginalSize, c.cfg.Limits.MaxFileSize)
	}

	rep, err := c.engine.Process(ctx, data)
	if err != nil {
		return nil, err
	}

	res.Format = rep.Format
	res.CleanedSize = int64(rep.CleanedSize)
	res.Savings = rep.Savings
	res.ItemsRemoved = len(rep.Original.Items) - len(rep.Cleaned.Items)
	if res.ItemsRemoved < 0 {
		res.ItemsRemoved = 0
	}
	res.HadGPS = rep.Original.HasGPS
	res.HadCamera = rep.Original.HasCamera
	res.HadDateTime = rep.Original.HasDateTime

	if res.ItemsRemoved > 0 || len(rep.Removed) > 0 {
		res.Action = ActionCleaned
		res.Message = fmt.Sprintf("removed %d metadata items, saved %s", res.ItemsRemoved, res.Savings)
	} else {
		res.Action = ActionUnchanged
		res.Message = "no metadata found"
	}

	entry := logger.WithImage(c.logger, res.InputPath, res.Format.String())
	entry.WithFields(logrus.Fields{
		"items_removed": res.ItemsRemoved,
		"had_gps":       res.HadGPS,
		"strategy":      rep.Strategy,
	}).Debug("Stripped metadata")
	return rep.Data, nil
}

// emit writes one cleaned file, honoring dry-run and duplicate handling.
func (c *DefaultCleaner) emit(ctx context.Context, r *run, res *FileResult, data []byte) {
	target, skip, err := c.target(r, res.InputPath, res.Format)
	if err != nil {
		c.fail(res, "duplicate_handling", err)
		return
	}
	res.OutputPath = target
	if skip {
		c.logger.Infof("Skipping duplicate output: %s", target)
		c.stats.IncrementFilesSkipped()
		res.Action = ActionSkipped
		res.Message = "output already exists"
		res.FinishedAt = c.now()
		return
	}

	if r.dryRun {
		msg := fmt.Sprintf("DRY-RUN: Would write %s -> %s", res.InputPath, target)
		c.logger.Info(msg)
		res.Action = ActionDryRun
		res.Message = msg
		c.record(res)
		res.FinishedAt = c.now()
		return
	}

	if err := writeFile(target, data); err != nil {
		res.OutputPath = ""
		c.fail(res, "write", err)
		return
	}
	c.verifyOutput(ctx, res)
	c.record(res)
	c.logger.Infof("Cleaned file: %s -> %s", res.InputPath, target)
	res.FinishedAt = c.now()
}

// finishBundle writes the held outputs into one archive, or individually
// when too few inputs succeeded.
func (c *DefaultCleaner) finishBundle(ctx context.Context, r *run, batch *Batch, held [][]byte) {
	var entries []archive.Entry
	var idx []int
	for i, data := range held {
		if data == nil {
			continue
		}
		res := &batch.Results[i]
		entries = append(entries, archive.Entry{
			Name:     CleanName(res.InputPath, c.cfg.OutputSuffix, res.Format),
			Data:     data,
			Modified: res.StartedAt,
		})
		idx = append(idx, i)
	}

	if !archive.ShouldZip(len(entries), c.cfg.Processing.ZipThreshold) {
		for _, i := range idx {
			c.emit(ctx, r, &batch.Results[i], held[i])
		}
		return
	}

	dir := r.outDir
	if dir == "" {
		dir = filepath.Dir(batch.Results[idx[0]].InputPath)
	}
	path, err := archive.WriteFile(dir, entries, c.now())
	if err != nil {
		for _, i := range idx {
			c.fail(&batch.Results[i], "archive", err)
		}
		return
	}

	batch.Archive = path
	for _, i := range idx {
		res := &batch.Results[i]
		res.OutputPath = path
		c.record(res)
	}
	c.logger.Infof("Bundled %d cleaned files into %s", len(idx), path)
}

// target resolves the output path for input. Outputs claimed earlier in the
// same run are always renamed; existing files follow duplicate_handling.
func (c *DefaultCleaner) target(r *run, input string, f format.Format) (string, bool, error) {
	dir := r.outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	path := filepath.Join(dir, CleanName(input, c.cfg.OutputSuffix, f))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClaimed(path) {
		path = generateUniqueFilename(path, r.isClaimed)
		r.claimed[path] = struct{}{}
		return path, false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.claimed[path] = struct{}{}
		return path, false, nil
	}

	c.stats.IncrementDuplicatesFound()
	switch c.cfg.Processing.DuplicateHandling {
	case "skip":
		c.stats.IncrementDuplicatesSkipped()
		return path, true, nil
	case "overwrite":
		c.logger.Infof("Overwriting existing file: %s", path)
		c.stats.IncrementDuplicatesReplaced()
		r.claimed[path] = struct{}{}
		return path, false, nil
	case "rename":
		renamed := generateUniqueFilename(path, r.isClaimed)
		c.logger.Infof("Renaming duplicate output: %s -> %s", path, renamed)
		c.stats.IncrementDuplicatesRenamed()
		r.claimed[renamed] = struct{}{}
		return renamed, false, nil
	default:
		return "", false, fmt.Errorf("unknown duplicate handling strategy: %s", c.cfg.Processing.DuplicateHandling)
	}
}

func (c *DefaultCleaner) verifyOutput(ctx context.Context, res *FileResult) {
	finding, err := c.verifier.Verify(ctx, res.OutputPath)
	if err != nil {
		c.logger.Warnf("Could not verify %s: %v", res.OutputPath, err)
		return
	}
	res.Residual = finding.Residual
	if !finding.Clean() {
		c.logger.Warnf("Residual metadata in %s: %v", res.OutputPath, finding.Residual)
	}
}

func (c *DefaultCleaner) record(res *FileResult) {
	c.stats.RecordCleaned(res.Format.String(), res.OriginalSize, res.CleanedSize,
		res.ItemsRemoved, res.HadGPS, res.HadCamera, res.HadDateTime)
}

// fail marks res as failed and records the error.
func (c *DefaultCleaner) fail(res *FileResult, op string, err error) {
	res.Action = ActionError
	if errors.Is(err, ErrFileTooLarge) || errors.Is(err, stripper.ErrFormatNotRecognized) {
		res.Action = ActionRejected
	}
	if errors.Is(err, ErrFileTooLarge) {
		c.stats.IncrementFilesTooLarge()
	}
	res.Error = err
	res.Message = err.Error()
	res.FinishedAt = c.now()
	c.stats.AddError(res.InputPath, op, err.Error())
	c.logger.Warnf("Could not clean %s: %v", res.InputPath, err)
}

// collectFiles expands directories recursively, keeping files whose
// extension is supported. Files named explicitly are always kept; their
// content decides whether they can be cleaned.
func (c *DefaultCleaner) collectFiles(inputPaths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	limit := c.cfg.Limits.MaxFilesPerRun

	add := func(path string) bool {
		if _, ok := seen[path]; ok {
			return true
		}
		seen[path] = struct{}{}
		files = append(files, path)
		c.stats.IncrementFilesFound()
		if limit > 0 && len(files) >= limit {
			c.logger.Infof("Reached maximum files limit (%d), stopping discovery", limit)
			return false
		}
		return true
	}

	for _, in := range inputPaths {
		info, err := os.Stat(in)
		if err != nil {
			c.logger.Warnf("Error accessing path %s: %v", in, err)
			c.stats.AddError(in, "discover", err.Error())
			continue
		}
		if !info.IsDir() {
			if !add(filepath.Clean(in)) {
				return files, nil
			}
			continue
		}

		stop := false
		err = filepath.WalkDir(in, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				c.logger.Warnf("Error accessing path %s: %v", path, err)
				return nil
			}
			if d.IsDir() || !c.cfg.IsSupportedExtension(filepath.Ext(d.Name())) {
				return nil
			}
			if !add(path) {
				stop = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	return files, nil
}

// writeFile writes data next to path and renames it into place.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir error: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write tmp file error: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename error: %w", err)
	}
	return nil
}
