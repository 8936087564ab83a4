package translate

import (
	"fmt"

	"github.com/halvora/srtrans/internal/subtitle"
)

// Window partitions entries into contiguous batches of at most size entries.
// The last batch holds the remainder. No entries are dropped, reordered, or
// duplicated; the batches are sub-slices of the input.
func Window(entries []subtitle.Entry, size int) ([][]subtitle.Entry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be greater than 0, got %d", size)
	}

	var batches [][]subtitle.Entry
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		batches = append(batches, entries[start:end])
	}

	return batches, nil
}
