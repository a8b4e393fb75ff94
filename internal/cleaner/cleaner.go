package cleaner

import (
	"context"
	"time"

	"metazip/internal/format"
	"metazip/internal/savings"
)

// Params defines one cleaning run.
type Params struct {
	// InputPaths are files or directories; directories are walked recursively.
	InputPaths []string
	// OutputDir overrides the configured output directory when set.
	OutputDir string
	DryRun    bool
	// Zip bundles the cleaned files into one archive when the batch reaches
	// the configured threshold.
	Zip bool
}

// Action is what happened to one input.
type Action string

const (
	ActionCleaned   Action = "cleaned"
	ActionUnchanged Action = "unchanged"
	ActionSkipped   Action = "skipped"
	ActionDryRun    Action = "dry_run"
	ActionRejected  Action = "rejected"
	ActionError     Action = "error"
)

// FileResult describes the result of cleaning a single input.
type FileResult struct {
	InputPath    string         `json:"input_path"`
	OutputPath   string         `json:"output_path,omitempty"`
	Format       format.Format  `json:"format"`
	OriginalSize int64          `json:"original_size"`
	CleanedSize  int64          `json:"cleaned_size"`
	Savings      savings.Result `json:"savings"`
	ItemsRemoved int            `json:"items_removed"`
	HadGPS       bool           `json:"had_gps"`
	HadCamera    bool           `json:"had_camera"`
	HadDateTime  bool           `json:"had_datetime"`
	Residual     []string       `json:"residual,omitempty"`
	Action       Action         `json:"action"`
	Message      string         `json:"message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Error        error          `json:"-"`
}

// Success reports whether the input was cleaned or would have been.
func (r FileResult) Success() bool {
	switch r.Action {
	case ActionCleaned, ActionUnchanged, ActionDryRun:
		return true
	}
	return false
}

// Batch is the outcome of a run. Results are in input order.
type Batch struct {
	Results []FileResult `json:"results"`
	// Archive is the path of the ZIP bundle, empty when files were written
	// individually.
	Archive string `json:"archive,omitempty"`
}

// Item is an in-memory image to clean.
type Item struct {
	Name string
	Data []byte
}

// Output is the cleaned form of an Item.
type Output struct {
	Result FileResult
	Data   []byte
}

// ProgressFunc is called after each input finishes.
type ProgressFunc func(done, total int, res FileResult)

// Cleaner defines the interface for batch metadata removal.
type Cleaner interface {
	// Clean processes a list of files or directories according to the
	// parameters.
	Clean(ctx context.Context, params Params) (*Batch, error)
	// CleanItems cleans in-memory images without touching the file system.
	CleanItems(ctx context.Context, items []Item) []Output
}
