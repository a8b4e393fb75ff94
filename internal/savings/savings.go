// Package savings computes how much smaller a cleaned file is.
package savings

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// Result is the size reduction between an original and a cleaned file.
type Result struct {
	Bytes      uint32  `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// Calculate compares two sizes. Bytes is never negative; Percentage is
// rounded half away from zero to one decimal and is 0 when nothing was
// saved or the original is empty.
func Calculate(original, cleaned uint32) Result {
	if cleaned >= original {
		return Result{}
	}

	saved := original - cleaned
	pct := float64(saved) / float64(original) * 100
	return Result{
		Bytes:      saved,
		Percentage: math.Round(pct*10) / 10,
	}
}

// String renders the result as "1.2 kB (10.0%)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%.1f%%)", humanize.Bytes(uint64(r.Bytes)), r.Percentage)
}
