package statistics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains all statistics for a cleaning run.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesCleaned        int64
	FilesUnchanged      int64
	FilesSkipped        int64
	FilesWithErrors     int64
	FilesTooLarge       int64

	FilesWithGPS      int64
	FilesWithCamera   int64
	FilesWithDateTime int64
	TagsRemoved       int64

	DuplicatesFound    int64
	DuplicatesRenamed  int64
	DuplicatesSkipped  int64
	DuplicatesReplaced int64

	BytesBefore int64
	BytesAfter  int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex

	FormatStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// IncrementFilesTooLarge increases the count of files rejected for size by 1.
func (s *Statistics) IncrementFilesTooLarge() {
	atomic.AddInt64(&s.FilesTooLarge, 1)
}

// IncrementDuplicatesFound increases the count of found duplicates by 1.
func (s *Statistics) IncrementDuplicatesFound() {
	atomic.AddInt64(&s.DuplicatesFound, 1)
}

// IncrementDuplicatesRenamed increases the count of renamed duplicates by 1.
func (s *Statistics) IncrementDuplicatesRenamed() {
	atomic.AddInt64(&s.DuplicatesRenamed, 1)
}

// IncrementDuplicatesSkipped increases the count of skipped duplicates by 1.
func (s *Statistics) IncrementDuplicatesSkipped() {
	atomic.AddInt64(&s.DuplicatesSkipped, 1)
}

// IncrementDuplicatesReplaced increases the count of replaced duplicates by 1.
func (s *Statistics) IncrementDuplicatesReplaced() {
	atomic.AddInt64(&s.DuplicatesReplaced, 1)
}

// RecordCleaned records one cleaned file: its sizes, format, and what
// metadata it carried before cleaning.
func (s *Statistics) RecordCleaned(format string, before, after int64, tags int, gps, camera, datetime bool) {
	if before == after {
		atomic.AddInt64(&s.FilesUnchanged, 1)
	} else {
		atomic.AddInt64(&s.FilesCleaned, 1)
	}
	atomic.AddInt64(&s.BytesBefore, before)
	atomic.AddInt64(&s.BytesAfter, after)
	atomic.AddInt64(&s.TagsRemoved, int64(tags))
	if gps {
		atomic.AddInt64(&s.FilesWithGPS, 1)
	}
	if camera {
		atomic.AddInt64(&s.FilesWithCamera, 1)
	}
	if datetime {
		atomic.AddInt64(&s.FilesWithDateTime, 1)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FormatStats[format]++
}

// Finalize calculates final statistics such as duration and files per second.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(atomic.LoadInt64(&s.TotalFilesProcessed)) / s.Duration.Seconds()
	}
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.FilesWithErrors, 1)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// BytesSaved returns the total size reduction, never negative.
func (s *Statistics) BytesSaved() int64 {
	saved := atomic.LoadInt64(&s.BytesBefore) - atomic.LoadInt64(&s.BytesAfter)
	if saved < 0 {
		return 0
	}
	return saved
}

// SavedPercentage returns the total size reduction in percent, rounded to
// one decimal.
func (s *Statistics) SavedPercentage() float64 {
	before := atomic.LoadInt64(&s.BytesBefore)
	if before == 0 {
		return 0
	}
	return math.Round(float64(s.BytesSaved())/float64(before)*1000) / 10
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration, perSecond := s.Duration, s.FilesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Metadata Cleaning Summary:

Files:
		Total Found: %s
		Total Processed: %s
		Cleaned: %s
		Already Clean: %s
		Skipped: %s
		Too Large: %s
		Errors: %s

Privacy:
		With GPS: %s
		With Camera Info: %s
		With Date/Time: %s
		Tags Removed: %s

Duplicates:
		Found: %d
		Renamed: %d
		Skipped: %d
		Replaced: %d

Size:
		Before: %s
		After: %s
		Saved: %s (%.1f%%)

Performance:
		Duration: %v
		Files/Second: %.2f`,
		humanize.Comma(atomic.LoadInt64(&s.TotalFilesFound)),
		humanize.Comma(atomic.LoadInt64(&s.TotalFilesProcessed)),
		humanize.Comma(atomic.LoadInt64(&s.FilesCleaned)),
		humanize.Comma(atomic.LoadInt64(&s.FilesUnchanged)),
		humanize.Comma(atomic.LoadInt64(&s.FilesSkipped)),
		humanize.Comma(atomic.LoadInt64(&s.FilesTooLarge)),
		humanize.Comma(atomic.LoadInt64(&s.FilesWithErrors)),
		humanize.Comma(atomic.LoadInt64(&s.FilesWithGPS)),
		humanize.Comma(atomic.LoadInt64(&s.FilesWithCamera)),
		humanize.Comma(atomic.LoadInt64(&s.FilesWithDateTime)),
		humanize.Comma(atomic.LoadInt64(&s.TagsRemoved)),
		atomic.LoadInt64(&s.DuplicatesFound),
		atomic.LoadInt64(&s.DuplicatesRenamed),
		atomic.LoadInt64(&s.DuplicatesSkipped),
		atomic.LoadInt64(&s.DuplicatesReplaced),
		formatBytes(atomic.LoadInt64(&s.BytesBefore)),
		formatBytes(atomic.LoadInt64(&s.BytesAfter)),
		formatBytes(s.BytesSaved()),
		s.SavedPercentage(),
		duration.Round(time.Millisecond),
		perSecond)
}

// GetFormatBreakdown returns a formatted breakdown of image formats cleaned.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FormatStats) == 0 {
		return "No format statistics available"
	}

	formats := make([]string, 0, len(s.FormatStats))
	for f := range s.FormatStats {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	var b strings.Builder
	b.WriteString("Format Breakdown:\n")
	for _, f := range formats {
		fmt.Fprintf(&b, "  %s: %d\n", f, s.FormatStats[f])
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return b.String()
}

// Snapshot is a point-in-time copy of the counters, for JSON output.
type Snapshot struct {
	FilesFound      int64            `json:"filesFound"`
	FilesProcessed  int64            `json:"filesProcessed"`
	FilesCleaned    int64            `json:"filesCleaned"`
	FilesSkipped    int64            `json:"filesSkipped"`
	FilesWithErrors int64            `json:"filesWithErrors"`
	FilesWithGPS    int64            `json:"filesWithGPS"`
	BytesBefore     int64            `json:"bytesBefore"`
	BytesAfter      int64            `json:"bytesAfter"`
	BytesSaved      int64            `json:"bytesSaved"`
	SavedPercentage float64          `json:"savedPercentage"`
	Formats         map[string]int64 `json:"formats"`
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	formats := make(map[string]int64, len(s.FormatStats))
	for f, n := range s.FormatStats {
		formats[f] = n
	}
	s.mutex.RUnlock()

	return Snapshot{
		FilesFound:      atomic.LoadInt64(&s.TotalFilesFound),
		FilesProcessed:  atomic.LoadInt64(&s.TotalFilesProcessed),
		FilesCleaned:    atomic.LoadInt64(&s.FilesCleaned),
		FilesSkipped:    atomic.LoadInt64(&s.FilesSkipped),
		FilesWithErrors: atomic.LoadInt64(&s.FilesWithErrors),
		FilesWithGPS:    atomic.LoadInt64(&s.FilesWithGPS),
		BytesBefore:     atomic.LoadInt64(&s.BytesBefore),
		BytesAfter:      atomic.LoadInt64(&s.BytesAfter),
		BytesSaved:      s.BytesSaved(),
		SavedPercentage: s.SavedPercentage(),
		Formats:         formats,
	}
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
